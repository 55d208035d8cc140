package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sells-group/caselaw-cli/internal/checkpoint"
	"github.com/sells-group/caselaw-cli/internal/ratelimit"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report rate budget, storage, and job progress",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		stats, err := store.Stats()
		if err != nil {
			return err
		}

		limiter, err := ratelimit.New(filepath.Join(store.Dir(), "ratelimit"), adapterName, cfg.Scrape.DailyRequestLimit)
		if err != nil {
			return err
		}
		rate := limiter.State()

		checkpoints, err := checkpoint.NewStore(filepath.Join(store.Dir(), "checkpoints"))
		if err != nil {
			return err
		}
		cps, err := checkpoints.List()
		if err != nil {
			return err
		}

		fmt.Printf("adapter:        %s\n", adapterName)
		fmt.Printf("data dir:       %s\n", stats.DataDir)
		fmt.Printf("stored cases:   %d\n", stats.TotalCases)
		fmt.Printf("jsonl logs:     %d\n", stats.JSONLFiles)
		fmt.Printf("requests today: %d / %d (window started %s)\n",
			rate.Count, limiter.Limit(), rate.WindowStart.Format("2006-01-02 15:04 MST"))
		fmt.Printf("remaining:      %d\n", rate.Remaining(limiter.Limit()))

		if len(cps) == 0 {
			fmt.Println("jobs:           none")
			return nil
		}
		fmt.Printf("jobs:           %d\n", len(cps))
		for _, cp := range cps {
			fmt.Printf("  %s: %d processed, last %s (%s)\n",
				cp.JobID, cp.Processed, cp.LastCaseID, cp.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
