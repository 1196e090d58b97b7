package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"drdoc/internal/router"
)

var (
	askStrategy string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question against the ingested documentation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, err := router.ParseStrategy(askStrategy)
		if err != nil {
			return err
		}

		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.Close()

		result, err := app.router.Answer(context.Background(), router.Request{
			Question: strings.Join(args, " "),
			Strategy: strategy,
		})
		if err != nil {
			return err
		}

		if askJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Println(result.Answer)
		fmt.Printf("\n[%s | confidence %.2f | %.3fs] %s\n",
			result.QueryType, result.Confidence, result.ResponseTime, result.Reasoning)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askStrategy, "strategy", "s", "auto", "Retrieval strategy: auto, semantic, symbolic, or hybrid")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full result as JSON")
}
