package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/caselaw-cli/internal/analytics"
	"github.com/sells-group/caselaw-cli/internal/quality"
)

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Check dataset quality",
	Long: `Validate the persisted dataset and hunt for near-duplicates.

Types:
  validate    per-case schema validation results
  duplicates  near-duplicate case texts (SimHash)
  report      aggregated quality report`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		kind, _ := cmd.Flags().GetString("type")
		threshold, _ := cmd.Flags().GetFloat64("threshold")

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
		case "validate":
			result = quality.NewValidator(nil).ValidateAll(cases)
		case "duplicates":
			result = quality.FindDuplicates(cases, threshold)
		case "report":
			result = quality.BuildReport(cases, nil)
		default:
			return eris.Errorf("unknown quality check %q (valid: validate, duplicates, report)", kind)
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return eris.Wrap(err, "quality: marshal result")
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

func init() {
	qualityCmd.Flags().StringP("type", "t", "", "check type: validate, duplicates, or report (required)")
	qualityCmd.Flags().Float64("threshold", 0.9, "similarity threshold for duplicate detection")
	rootCmd.AddCommand(qualityCmd)
}
