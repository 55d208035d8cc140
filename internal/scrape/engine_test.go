package scrape

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/caselaw-cli/internal/adapter"
	"github.com/sells-group/caselaw-cli/internal/checkpoint"
	"github.com/sells-group/caselaw-cli/internal/model"
	"github.com/sells-group/caselaw-cli/internal/ratelimit"
	"github.com/sells-group/caselaw-cli/internal/resilience"
	"github.com/sells-group/caselaw-cli/internal/storage"
	"github.com/sells-group/caselaw-cli/internal/timing"
)

// fastTiming keeps delays in the microsecond range so tests run at full speed.
func fastTiming() *timing.Controller {
	return timing.NewController(timing.Options{
		MinDelay:           time.Microsecond,
		MaxDelay:           2 * time.Microsecond,
		ReadingPauseChance: -1,
		BreakEveryMin:      1 << 20,
		BreakEveryMax:      1<<20 + 1,
	})
}

type harness struct {
	eng     *Engine
	store   *storage.Store
	cps     *checkpoint.Store
	skips   *resilience.SkipLog
	limiter *ratelimit.DailyLimiter
}

func newHarness(t *testing.T, ad adapter.Adapter, dailyLimit int, opts Options) *harness {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewStore(dir)
	require.NoError(t, err)
	cps, err := checkpoint.NewStore(filepath.Join(dir, "checkpoints"))
	require.NoError(t, err)
	limiter, err := ratelimit.New(filepath.Join(dir, "ratelimit"), ad.Name(), dailyLimit)
	require.NoError(t, err)
	skips, err := resilience.NewSkipLog(filepath.Join(dir, "skipped"))
	require.NoError(t, err)

	return &harness{
		eng:     New(ad, fastTiming(), limiter, cps, store, skips, opts),
		store:   store,
		cps:     cps,
		skips:   skips,
		limiter: limiter,
	}
}

func searchPlan() model.Plan {
	return model.Plan{Kind: model.PlanSearch, Query: "appeal"}
}

func TestRunCompletesSearchJob(t *testing.T) {
	t.Parallel()
	h := newHarness(t, adapter.NewExample(), 100, Options{})

	res, err := h.eng.Run(context.Background(), searchPlan())
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, res.Status)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, "example-search-appeal", res.JobID)

	for _, id := range []string{"case_001", "case_002", "case_003"} {
		assert.True(t, h.store.Has(id))
	}

	cp, err := h.cps.Load(res.JobID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "case_003", cp.LastCaseID)
	assert.Equal(t, 3, cp.Processed)

	// One enumeration request plus one per item.
	assert.Equal(t, 4, h.limiter.State().Count)
}

func TestRunSkipsNotFound(t *testing.T) {
	t.Parallel()
	ad := adapter.NewExample()
	ad.NotFound = map[string]bool{"case_002": true}
	h := newHarness(t, ad, 100, Options{})

	res, err := h.eng.Run(context.Background(), searchPlan())
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, res.Status)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Skipped)

	assert.True(t, h.store.Has("case_001"))
	assert.False(t, h.store.Has("case_002"))
	assert.True(t, h.store.Has("case_003"))

	// The skipped item never advanced the cursor; the last persisted one did.
	cp, err := h.cps.Load(res.JobID)
	require.NoError(t, err)
	assert.Equal(t, "case_003", cp.LastCaseID)
	assert.Equal(t, 2, cp.Processed)

	entries, err := h.skips.List(res.JobID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "case_002", entries[0].CaseID)
	assert.Equal(t, "not_found", entries[0].ErrorType)
}

func TestRunPausesOnRateLimit(t *testing.T) {
	t.Parallel()
	h := newHarness(t, adapter.NewExample(), 2, Options{})

	res, err := h.eng.Run(context.Background(), searchPlan())
	require.NoError(t, err)

	assert.Equal(t, model.JobPausedRateLimit, res.Status)
	assert.True(t, res.Status.Resumable())
	assert.Equal(t, 1, res.Processed, "one budget unit for enumeration, one for the first fetch")

	cp, err := h.cps.Load(res.JobID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "case_001", cp.LastCaseID)
}

func TestRunRateLimitBeforeEnumeration(t *testing.T) {
	t.Parallel()
	h := newHarness(t, adapter.NewExample(), 1, Options{})

	// Exhaust the budget before the run starts.
	ok, err := h.limiter.Allow()
	require.NoError(t, err)
	require.True(t, ok)

	res, err := h.eng.Run(context.Background(), searchPlan())
	require.NoError(t, err)
	assert.Equal(t, model.JobPausedRateLimit, res.Status)
	assert.Equal(t, 0, res.Processed)
}

func TestRunResumesAfterCheckpoint(t *testing.T) {
	t.Parallel()
	h := newHarness(t, adapter.NewExample(), 100, Options{})
	jobID := model.JobID("example", searchPlan())
	require.NoError(t, h.cps.Save(checkpoint.Checkpoint{
		JobID:      jobID,
		LastCaseID: "case_001",
		Processed:  1,
	}))

	res, err := h.eng.Run(context.Background(), searchPlan())
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, res.Status)
	assert.Equal(t, 2, res.Processed, "items at or before the cursor are not refetched")
	assert.False(t, h.store.Has("case_001"))
	assert.True(t, h.store.Has("case_002"))
	assert.True(t, h.store.Has("case_003"))

	cp, err := h.cps.Load(jobID)
	require.NoError(t, err)
	assert.Equal(t, "case_003", cp.LastCaseID)
	assert.Equal(t, 3, cp.Processed, "cumulative across runs")
}

func TestRunReprocessesWhenCursorVanished(t *testing.T) {
	t.Parallel()
	h := newHarness(t, adapter.NewExample(), 100, Options{})
	jobID := model.JobID("example", searchPlan())
	require.NoError(t, h.cps.Save(checkpoint.Checkpoint{
		JobID:      jobID,
		LastCaseID: "case_gone",
		Processed:  7,
	}))

	res, err := h.eng.Run(context.Background(), searchPlan())
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, res.Status)
	assert.Equal(t, 3, res.Processed, "a shifted ordering reprocesses the whole plan")
}

func TestRunSkipsAlreadyStoredCases(t *testing.T) {
	t.Parallel()
	ad := adapter.NewExample()
	// If the engine fetched case_001 this would surface as a skip.
	ad.NotFound = map[string]bool{"case_001": true}
	h := newHarness(t, ad, 100, Options{})

	require.NoError(t, h.store.Persist(&model.CaseRecord{ID: "case_001", Title: "old"}, "seed", storage.FormatJSON))

	res, err := h.eng.Run(context.Background(), searchPlan())
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, res.Status)
	assert.Equal(t, 1, res.Existing)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 0, res.Skipped, "stored cases are not fetched again")
}

func TestRunRefetchForcesAdapterCalls(t *testing.T) {
	t.Parallel()
	ad := adapter.NewExample()
	ad.NotFound = map[string]bool{"case_001": true}
	h := newHarness(t, ad, 100, Options{Refetch: true})

	require.NoError(t, h.store.Persist(&model.CaseRecord{ID: "case_001", Title: "old"}, "seed", storage.FormatJSON))

	res, err := h.eng.Run(context.Background(), searchPlan())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Existing)
	assert.Equal(t, 1, res.Skipped, "refetch went to the adapter and found nothing")
}

func TestRunRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()
	ad := adapter.NewExample()
	ad.TransientFails = map[string]int{"case_002": 2}
	h := newHarness(t, ad, 100, Options{MaxRetries: 3})

	res, err := h.eng.Run(context.Background(), searchPlan())
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, res.Status)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 0, res.Skipped)
	// Enumeration + 3 clean fetches + 2 failed attempts.
	assert.Equal(t, 6, h.limiter.State().Count)
}

func TestRunGivesUpAfterRetriesExhausted(t *testing.T) {
	t.Parallel()
	ad := adapter.NewExample()
	ad.TransientFails = map[string]int{"case_002": 5}
	h := newHarness(t, ad, 100, Options{MaxRetries: 3})

	res, err := h.eng.Run(context.Background(), searchPlan())
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, res.Status)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Skipped)

	entries, err := h.skips.List(res.JobID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "case_002", entries[0].CaseID)
	assert.Equal(t, "transient", entries[0].ErrorType)
	assert.Equal(t, 3, entries[0].Attempts)
}

func TestRunReauthenticatesOnSessionExpiry(t *testing.T) {
	t.Parallel()
	ad := adapter.NewExample()
	ad.ExpireSessionAfter = 2
	h := newHarness(t, ad, 100, Options{})

	res, err := h.eng.Run(context.Background(), searchPlan())
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, res.Status)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 0, res.Skipped, "expiries are absorbed by re-authentication")
}

func TestRunAuthFailureIsFatal(t *testing.T) {
	t.Parallel()
	ad := adapter.NewExample()
	ad.AuthErr = eris.New("bad credentials")
	h := newHarness(t, ad, 100, Options{})

	res, err := h.eng.Run(context.Background(), searchPlan())
	require.Error(t, err)
	assert.True(t, resilience.IsAuth(err))
	assert.Equal(t, model.JobFailed, res.Status)
}

func TestRunCorruptCheckpointIsFatal(t *testing.T) {
	t.Parallel()
	h := newHarness(t, adapter.NewExample(), 100, Options{})
	jobID := model.JobID("example", searchPlan())

	// An empty cursor is internally inconsistent and must refuse to resume.
	require.NoError(t, h.cps.Save(checkpoint.Checkpoint{JobID: jobID, LastCaseID: "", Processed: 1}))

	res, err := h.eng.Run(context.Background(), searchPlan())
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCheckpointCorrupt)
	assert.Equal(t, model.JobFailed, res.Status)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	t.Parallel()
	h := newHarness(t, adapter.NewExample(), 100, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.eng.Run(ctx, searchPlan())
	require.NoError(t, err)
	assert.Equal(t, model.JobPaused, res.Status)
	assert.True(t, res.Status.Resumable())
}

// cancellingAdapter cancels the job context after a number of successful
// fetches, emulating an operator interrupt mid-run.
type cancellingAdapter struct {
	*adapter.Example
	cancel  context.CancelFunc
	after   int
	fetches int
}

func (c *cancellingAdapter) FetchCase(ctx context.Context, sess adapter.Session, caseID string) (*model.CaseRecord, error) {
	c.fetches++
	if c.fetches > c.after {
		c.cancel()
	}
	return c.Example.FetchCase(ctx, sess, caseID)
}

func TestRunCancelledMidRun(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ad := &cancellingAdapter{Example: adapter.NewExample(), cancel: cancel, after: 1}
	h := newHarness(t, ad, 100, Options{})

	res, err := h.eng.Run(ctx, searchPlan())
	require.NoError(t, err)

	assert.Equal(t, model.JobPaused, res.Status)
	assert.Equal(t, 1, res.Processed)

	// The checkpoint still points at the last completed item, so a rerun
	// picks up at case_002.
	cp, err := h.cps.Load(res.JobID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "case_001", cp.LastCaseID)
}

// cancelOnFailureAdapter cancels the job context the moment a fetch fails,
// emulating an operator interrupt landing while the engine is between retry
// attempts.
type cancelOnFailureAdapter struct {
	*adapter.Example
	cancel context.CancelFunc
}

func (c *cancelOnFailureAdapter) FetchCase(ctx context.Context, sess adapter.Session, caseID string) (*model.CaseRecord, error) {
	rec, err := c.Example.FetchCase(ctx, sess, caseID)
	if err != nil {
		c.cancel()
	}
	return rec, err
}

func TestRunCancelDuringRetryIsNotASkip(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := adapter.NewExample()
	inner.TransientFails = map[string]int{"case_002": 1}
	ad := &cancelOnFailureAdapter{Example: inner, cancel: cancel}
	h := newHarness(t, ad, 100, Options{MaxRetries: 3})

	res, err := h.eng.Run(ctx, searchPlan())
	require.NoError(t, err)

	assert.Equal(t, model.JobPaused, res.Status)
	assert.Equal(t, 1, res.Processed)
	assert.Zero(t, res.Skipped)

	// The interrupted item keeps its retry budget for the resumed run, so
	// it must not appear in the skip log as exhausted.
	entries, err := h.skips.List(res.JobID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	cp, err := h.cps.Load(res.JobID)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "case_001", cp.LastCaseID)
}

func TestRunYearPlan(t *testing.T) {
	t.Parallel()
	ad := adapter.NewExample()
	ad.CasesPerYear = 4
	h := newHarness(t, ad, 100, Options{})

	res, err := h.eng.Run(context.Background(), model.Plan{Kind: model.PlanYear, Year: 2023})
	require.NoError(t, err)

	assert.Equal(t, model.JobCompleted, res.Status)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, "example-year-2023", res.JobID)
	assert.True(t, h.store.Has("case_2023_004"))
}

func TestRunPlanLimit(t *testing.T) {
	t.Parallel()
	ad := adapter.NewExample()
	ad.CasesPerYear = 10
	h := newHarness(t, ad, 100, Options{})

	res, err := h.eng.Run(context.Background(), model.Plan{Kind: model.PlanYear, Year: 2023, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Processed)
	assert.True(t, h.store.Has("case_2023_001"))
	assert.True(t, h.store.Has("case_2023_002"))
	assert.False(t, h.store.Has("case_2023_003"))
}

func TestRunUnknownPlanKind(t *testing.T) {
	t.Parallel()
	h := newHarness(t, adapter.NewExample(), 100, Options{})

	res, err := h.eng.Run(context.Background(), model.Plan{Kind: "bogus"})
	require.Error(t, err)
	assert.Equal(t, model.JobFailed, res.Status)
}

func TestFetchOne(t *testing.T) {
	t.Parallel()
	h := newHarness(t, adapter.NewExample(), 100, Options{})

	rec, err := h.eng.FetchOne(context.Background(), "case_123")
	require.NoError(t, err)
	assert.Equal(t, "case_123", rec.ID)

	// A one-off fetch persists nothing and leaves no checkpoint.
	assert.False(t, h.store.Has("case_123"))
	cps, err := h.cps.List()
	require.NoError(t, err)
	assert.Empty(t, cps)
}

func TestEngineSearchHelper(t *testing.T) {
	t.Parallel()
	h := newHarness(t, adapter.NewExample(), 100, Options{})

	results, err := h.eng.Search(context.Background(), "land dispute", adapter.SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 1, h.limiter.State().Count)
}

func TestEngineEnumerateHelper(t *testing.T) {
	t.Parallel()
	ad := adapter.NewExample()
	ad.CasesPerYear = 2
	h := newHarness(t, ad, 100, Options{})

	ids, err := h.eng.Enumerate(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, []string{"case_2024_001", "case_2024_002"}, ids)
}
