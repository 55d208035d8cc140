package analytics

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/caselaw-cli/internal/model"
	"github.com/sells-group/caselaw-cli/internal/storage"
)

// LoadCases reads every persisted case from the per-case format with bounded
// parallelism. Analytics runs after scraping, so unlike the engine it is
// free to hit the local disk concurrently. Results are sorted by case id for
// deterministic reports.
func LoadCases(ctx context.Context, store *storage.Store) ([]model.CaseRecord, error) {
	ids, err := store.CaseIDs()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	cases := make([]model.CaseRecord, 0, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := store.LoadCase(id)
			if err != nil {
				return err
			}
			mu.Lock()
			cases = append(cases, *record)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(cases, func(i, j int) bool { return cases[i].ID < cases[j].ID })
	return cases, nil
}
