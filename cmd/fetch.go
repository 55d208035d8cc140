package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/caselaw-cli/internal/model"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and persist cases",
	Long: `Fetch full case records and persist them to the data directory.

With --id, fetches a single case and prints it. With --query or --year, runs
a checkpointed job over the plan's work items: interrupting with Ctrl-C
pauses the job, and rerunning the same command resumes after the last
persisted case.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		id, _ := cmd.Flags().GetString("id")
		query, _ := cmd.Flags().GetString("query")
		year, _ := cmd.Flags().GetInt("year")
		limit, _ := cmd.Flags().GetInt("limit")
		refetch, _ := cmd.Flags().GetBool("refetch")

		var plan model.Plan
		switch {
		case id != "":
			return fetchSingle(ctx, id)
		case query != "":
			plan = model.Plan{Kind: model.PlanSearch, Query: query, Limit: limit}
		case year != 0:
			plan = model.Plan{Kind: model.PlanYear, Year: year, Limit: limit}
		default:
			return eris.New("one of --id, --query, or --year is required")
		}

		return runJob(ctx, plan, refetch)
	},
}

func init() {
	fetchCmd.Flags().String("id", "", "fetch a single case by id")
	fetchCmd.Flags().StringP("query", "q", "", "fetch all results of a search query")
	fetchCmd.Flags().IntP("year", "y", 0, "fetch all cases for a year")
	fetchCmd.Flags().IntP("limit", "l", 0, "max cases to fetch this run (0 = all)")
	fetchCmd.Flags().Bool("refetch", false, "refetch cases already in storage")
	rootCmd.AddCommand(fetchCmd)
}

// runJob drives one engine run and records it in the run log.
func runJob(ctx context.Context, plan model.Plan, refetch bool) error {
	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	engine.SetRefetch(refetch)

	log, err := openRunLog()
	if err != nil {
		return err
	}
	defer log.Close()

	jobID := model.JobID(adapterName, plan)
	runID, err := log.Start(context.Background(), jobID, adapterName, plan)
	if err != nil {
		return err
	}

	result, runErr := engine.Run(ctx, plan)

	reason := result.Reason
	if runErr != nil && reason == "" {
		reason = runErr.Error()
	}
	// Record the outcome even when the run failed; use a fresh context so a
	// cancelled job still gets its final state written.
	if err := log.Finish(context.Background(), runID, result.Status, result.Processed, result.Skipped, reason); err != nil {
		zap.L().Error("failed to record run outcome", zap.Error(err))
	}

	fmt.Printf("job %s: %s\n", result.JobID, result.Status)
	fmt.Printf("  persisted: %d  skipped: %d  already stored: %d\n",
		result.Processed, result.Skipped, result.Existing)
	if result.Reason != "" {
		fmt.Printf("  reason: %s\n", result.Reason)
	}
	if result.Status.Resumable() {
		fmt.Println("  rerun the same command to resume")
	}

	return runErr
}

// fetchSingle fetches one case outside any job plan and prints it as JSON.
func fetchSingle(ctx context.Context, caseID string) error {
	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	record, err := engine.FetchOne(ctx, caseID)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return eris.Wrap(err, "fetch: marshal record")
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
