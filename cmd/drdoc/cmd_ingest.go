package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"drdoc/internal/ingest"
)

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [docs-dir]",
	Short: "Ingest markdown documentation into the stores",
	Long: `Walks the docs directory, embeds document chunks into the vector
store, and extracts structured facts into the symbolic store. With
--watch the process stays running and re-ingests files as they change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			cfg.Ingest.DocsDir = args[0]
		}

		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		report, err := app.pipeline.IngestDir(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Ingested %d files: %d chunks, %d facts\n", report.Files, report.Chunks, report.Facts)

		if !ingestWatch && !cfg.Ingest.Watch {
			return nil
		}

		watcher, err := ingest.NewWatcher(app.pipeline)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer watcher.Stop()

		fmt.Printf("Watching %s for changes (Ctrl-C to stop)\n", cfg.Ingest.DocsDir)
		<-ctx.Done()
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "Keep running and re-ingest on file changes")
}
