package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"drdoc/internal/ingest"
	"drdoc/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP question-answering server",
	Long: `Starts the HTTP server exposing the question-answering API:

  POST /api/ask    - answer a question
  GET  /api/health - liveness plus store sizes
  POST /api/ingest - re-ingest the docs directory`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if cfg.Ingest.Watch {
			watcher, err := ingest.NewWatcher(app.pipeline)
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			if err := watcher.Start(ctx); err != nil {
				logger.Warn("document watcher unavailable", zap.Error(err))
			} else {
				defer watcher.Stop()
			}
		}

		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		deps := server.Deps{
			Answerer: app.router,
			Ingester: app.pipeline,
			Chunks:   app.store,
			Version:  cfg.Version,
		}
		if app.kb != nil {
			deps.Facts = app.kb
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           server.NewEngine(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("serving", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (overrides config)")
}
