package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var enumerateCmd = &cobra.Command{
	Use:   "enumerate",
	Short: "List all case ids for a year",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		year, _ := cmd.Flags().GetInt("year")
		if year == 0 {
			return fmt.Errorf("--year is required")
		}

		engine, err := buildEngine(cfg)
		if err != nil {
			return err
		}

		ids, err := engine.Enumerate(ctx, year)
		if err != nil {
			return err
		}

		fmt.Printf("found %d cases for %d:\n", len(ids), year)
		shown := ids
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, id := range shown {
			fmt.Printf("  %s\n", id)
		}
		if len(ids) > 10 {
			fmt.Printf("  ... and %d more\n", len(ids)-10)
		}
		return nil
	},
}

func init() {
	enumerateCmd.Flags().IntP("year", "y", 0, "year to enumerate (required)")
	rootCmd.AddCommand(enumerateCmd)
}
