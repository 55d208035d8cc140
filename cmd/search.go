package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/caselaw-cli/internal/adapter"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search a data source for cases",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		query, _ := cmd.Flags().GetString("query")
		if err := requireFlag("query", query); err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		court, _ := cmd.Flags().GetString("court")
		output, _ := cmd.Flags().GetString("output")

		engine, err := buildEngine(cfg)
		if err != nil {
			return err
		}

		results, err := engine.Search(ctx, query, adapter.SearchOptions{Limit: limit, Court: court})
		if err != nil {
			return err
		}

		fmt.Printf("found %d cases:\n", len(results))
		for _, c := range results {
			fmt.Printf("  [%s] %s\n", c.ID, c.Title)
		}

		if output != "" {
			raw, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return eris.Wrap(err, "search: marshal results")
			}
			if err := os.WriteFile(output, raw, 0o644); err != nil {
				return eris.Wrapf(err, "search: write %s", output)
			}
			fmt.Printf("saved to %s\n", output)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringP("query", "q", "", "search query (required)")
	searchCmd.Flags().IntP("limit", "l", 10, "max results")
	searchCmd.Flags().String("court", "", "restrict to a court")
	searchCmd.Flags().StringP("output", "o", "", "write results to a JSON file")
	rootCmd.AddCommand(searchCmd)
}
