package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/caselaw-cli/internal/adapter"
	"github.com/sells-group/caselaw-cli/internal/model"
)

// buildItems spends one budgeted, timed adapter call turning the plan into
// its ordered work items. The adapter's stable ordering is what makes the
// checkpoint cursor meaningful across runs.
func (e *Engine) buildItems(ctx context.Context, run *runState, plan model.Plan) ([]model.WorkItem, error) {
	switch plan.Kind {
	case model.PlanSearch:
		summaries, err := call(e, ctx, run, "search", func(ctx context.Context, sess adapter.Session) ([]model.CaseSummary, error) {
			return e.adapter.Search(ctx, sess, plan.Query, adapter.SearchOptions{Year: plan.Year})
		})
		if err != nil {
			return nil, err
		}
		items := make([]model.WorkItem, 0, len(summaries))
		for _, s := range summaries {
			items = append(items, model.WorkItem{CaseID: s.ID, Kind: model.PlanSearch})
		}
		return items, nil

	case model.PlanYear:
		ids, err := call(e, ctx, run, "enumerate_by_year", func(ctx context.Context, sess adapter.Session) ([]string, error) {
			return e.adapter.EnumerateByYear(ctx, sess, plan.Year)
		})
		if err != nil {
			return nil, err
		}
		items := make([]model.WorkItem, 0, len(ids))
		for _, id := range ids {
			items = append(items, model.WorkItem{CaseID: id, Kind: model.PlanYear})
		}
		return items, nil

	default:
		return nil, eris.Errorf("scrape: unknown plan kind %q", plan.Kind)
	}
}

// resumeFrom drops every item up to and including lastCaseID. If the cursor
// is not in the list the source's ordering has shifted; the whole plan is
// reprocessed, which is safe because persistence is idempotent by case id.
func resumeFrom(items []model.WorkItem, lastCaseID string, log *zap.Logger) []model.WorkItem {
	if lastCaseID == "" {
		return items
	}
	for i, item := range items {
		if item.CaseID == lastCaseID {
			log.Info("resuming after checkpoint",
				zap.String("last_case_id", lastCaseID),
				zap.Int("skipped_items", i+1),
			)
			return items[i+1:]
		}
	}
	log.Warn("checkpoint cursor not found in plan, reprocessing from start",
		zap.String("last_case_id", lastCaseID),
	)
	return items
}
