package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/caselaw-cli/internal/analytics"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run analytics over persisted cases",
	Long: `Run post-hoc analytics over the data directory's persisted cases.

Types:
  citations  extract and rank legal citations across the dataset
  stats      court/year distributions, text length stats, judge frequency
  glossary   frequency table of legal terms-of-art`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		kind, _ := cmd.Flags().GetString("type")

		store, err := openStore()
		if err != nil {
			return err
		}
		cases, err := analytics.LoadCases(cmd.Context(), store)
		if err != nil {
			return err
		}

		var result any
		switch kind {
		case "citations":
			extractor, err := analytics.NewExtractor(nil)
			if err != nil {
				return err
			}
			result = analytics.AnalyzeCitations(cases, extractor)
		case "stats":
			result = analytics.GenerateStats(cases)
		case "glossary":
			result = analytics.Glossary(cases, nil)
		default:
			return eris.Errorf("unknown analysis type %q (valid: citations, stats, glossary)", kind)
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return eris.Wrap(err, "analyze: marshal result")
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringP("type", "t", "", "analysis type: citations, stats, or glossary (required)")
	rootCmd.AddCommand(analyzeCmd)
}
