package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/caselaw-cli/internal/adapter"
)

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List registered source adapters",
	Run: func(_ *cobra.Command, _ []string) {
		for _, name := range adapter.Default().Names() {
			fmt.Println(name)
		}
	},
}

func init() {
	rootCmd.AddCommand(adaptersCmd)
}
