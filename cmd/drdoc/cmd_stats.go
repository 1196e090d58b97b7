package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store sizes and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		chunks, err := app.store.Count(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Chunk store:  %s (%d chunks)\n", cfg.Store.DatabasePath, chunks)
		if app.kb != nil {
			fmt.Printf("Fact store:   %d facts\n", app.kb.FactCount())
		} else {
			fmt.Println("Fact store:   disabled")
		}
		fmt.Printf("Embedder:     %s\n", cfg.Embedding.Provider)
		fmt.Printf("LLM:          enabled=%v model=%s\n", cfg.LLM.Enabled, cfg.LLM.Model)
		return nil
	},
}
