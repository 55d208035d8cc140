package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/caselaw-cli/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded scrape runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		log, err := openRunLog()
		if err != nil {
			return err
		}
		defer log.Close()

		runs, err := log.List(cmd.Context(), model.JobStatus(status), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tJOB\tADAPTER\tSTATUS\tPROCESSED\tSKIPPED\tREASON")
		for _, r := range runs {
			reason := r.Reason
			if len(reason) > 60 {
				reason = reason[:57] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.JobID, r.Adapter, r.Status, r.Processed, r.Skipped, reason)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().String("status", "", "filter by status (running, completed, paused, paused_rate_limit, failed)")
	runsCmd.Flags().Int("limit", 50, "maximum number of runs to list")
	rootCmd.AddCommand(runsCmd)
}
