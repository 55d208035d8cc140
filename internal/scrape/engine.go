// Package scrape is the orchestration engine: it pulls work items from a
// plan, pumps them through the timing controller and the daily rate limiter,
// invokes the adapter, and routes results to storage and the checkpoint
// store. One adapter call is in flight at a time; the timing model exists
// to avoid burst patterns, so nothing here is parallelized.
package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/caselaw-cli/internal/adapter"
	"github.com/sells-group/caselaw-cli/internal/checkpoint"
	"github.com/sells-group/caselaw-cli/internal/model"
	"github.com/sells-group/caselaw-cli/internal/ratelimit"
	"github.com/sells-group/caselaw-cli/internal/resilience"
	"github.com/sells-group/caselaw-cli/internal/storage"
	"github.com/sells-group/caselaw-cli/internal/timing"
)

// Options tunes a single engine instance.
type Options struct {
	// Format selects the persisted output formats. Default: both.
	Format storage.Format
	// MaxRetries bounds attempts per work item on transient failures.
	// Default: 3.
	MaxRetries int
	// CallTimeout is the deadline for one adapter call. Default: 60s.
	CallTimeout time.Duration
	// Refetch forces adapter calls for cases already present in storage.
	// When false, present cases advance the checkpoint without spending
	// budget.
	Refetch bool
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = storage.FormatBoth
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 60 * time.Second
	}
	return o
}

// Result is the outcome of one engine run.
type Result struct {
	JobID     string          `json:"job_id"`
	Status    model.JobStatus `json:"status"`
	Processed int             `json:"processed"` // persisted this run
	Skipped   int             `json:"skipped"`   // not-found or retries exhausted
	Existing  int             `json:"existing"`  // already in storage, no fetch
	Reason    string          `json:"reason,omitempty"`
}

// Engine drives one job at a time against one adapter. Multiple jobs run as
// separate engine instances (or processes); they share the daily budget
// through the limiter's persisted state.
type Engine struct {
	adapter     adapter.Adapter
	timing      *timing.Controller
	limiter     *ratelimit.DailyLimiter
	checkpoints *checkpoint.Store
	store       *storage.Store
	skips       *resilience.SkipLog
	opts        Options
}

// New wires an engine from its collaborators.
func New(
	ad adapter.Adapter,
	tc *timing.Controller,
	dl *ratelimit.DailyLimiter,
	cps *checkpoint.Store,
	st *storage.Store,
	skips *resilience.SkipLog,
	opts Options,
) *Engine {
	return &Engine{
		adapter:     ad,
		timing:      tc,
		limiter:     dl,
		checkpoints: cps,
		store:       st,
		skips:       skips,
		opts:        opts.withDefaults(),
	}
}

// errRateExhausted signals that the daily budget ran out mid-run. Job-level
// pause, not a failure.
var errRateExhausted = eris.New("daily request limit exhausted")

// runState carries the per-run mutable state: the session (replaced on
// re-authentication) and checkpoint progress.
type runState struct {
	jobID     string
	sess      adapter.Session
	processed int // cumulative, carried over from the checkpoint
	reauthed  bool
	attempts  int // adapter attempts made for the current item
	log       *zap.Logger
}

// Run executes one job to a terminal state. The returned error is non-nil
// only for fatal outcomes (auth, storage, checkpoint); pauses and
// completions report through Result.Status.
func (e *Engine) Run(ctx context.Context, plan model.Plan) (*Result, error) {
	jobID := model.JobID(e.adapter.Name(), plan)
	log := zap.L().With(
		zap.String("component", "scrape.engine"),
		zap.String("job_id", jobID),
		zap.String("adapter", e.adapter.Name()),
	)
	res := &Result{JobID: jobID, Status: model.JobFailed}

	defer func() {
		if err := e.adapter.Close(); err != nil {
			log.Warn("adapter close failed", zap.Error(err))
		}
	}()

	// INIT: load the checkpoint and compute the resume position.
	cp, err := e.checkpoints.Load(jobID)
	if err != nil {
		res.Reason = "checkpoint corrupt; resolve manually before rerunning"
		return res, err
	}

	run := &runState{jobID: jobID, log: log}
	if cp != nil {
		run.processed = cp.Processed
	}

	// AUTHENTICATING: fatal on failure, credentials are static for the run.
	log.Info("authenticating")
	sess, err := e.authenticate(ctx)
	if err != nil {
		if isCancel(ctx, err) {
			res.Status = model.JobPaused
			res.Reason = "cancelled during authentication"
			return res, nil
		}
		res.Reason = "authentication failed; check adapter credentials"
		return res, err
	}
	run.sess = sess

	// Derive the plan's work items (one budgeted request).
	items, err := e.buildItems(ctx, run, plan)
	if err != nil {
		switch {
		case errors.Is(err, errRateExhausted):
			res.Status = model.JobPausedRateLimit
			res.Reason = "daily request limit reached before plan enumeration"
			return res, nil
		case isCancel(ctx, err):
			res.Status = model.JobPaused
			res.Reason = "cancelled during plan enumeration"
			return res, nil
		case resilience.IsAuth(err):
			res.Reason = "session rejected during plan enumeration"
			return res, err
		default:
			res.Reason = "plan enumeration failed"
			return res, eris.Wrapf(err, "scrape: enumerate plan for %s", jobID)
		}
	}

	if cp != nil {
		items = resumeFrom(items, cp.LastCaseID, log)
	}
	if plan.Limit > 0 && len(items) > plan.Limit {
		items = items[:plan.Limit]
	}
	log.Info("plan ready", zap.Int("items", len(items)), zap.Int("already_processed", run.processed))

	// RUNNING: strictly sequential item loop.
	for _, item := range items {
		// Externally requested stop is not an error: persist nothing new
		// (the checkpoint already reflects the last completed item) and
		// report a resumable pause.
		if ctx.Err() != nil {
			res.Status = model.JobPaused
			res.Reason = "cancelled"
			return res, nil
		}

		if !e.opts.Refetch && e.store.Has(item.CaseID) {
			if err := e.advance(run, item.CaseID); err != nil {
				res.Reason = "checkpoint write failed"
				return res, err
			}
			res.Existing++
			log.Debug("case already stored", zap.String("case_id", item.CaseID))
			continue
		}

		record, err := e.fetchItem(ctx, run, item)
		switch {
		case err == nil:
			// Persist first, then checkpoint, never the reverse. A crash
			// between the two re-fetches at most one case, which the
			// idempotent store absorbs.
			if err := e.store.Persist(record, jobID, e.opts.Format); err != nil {
				res.Reason = "storage write failed"
				return res, err
			}
			if err := e.advance(run, item.CaseID); err != nil {
				res.Reason = "checkpoint write failed"
				return res, err
			}
			res.Processed++
			log.Info("case persisted", zap.String("case_id", item.CaseID))

		case errors.Is(err, errRateExhausted):
			res.Status = model.JobPausedRateLimit
			res.Reason = "daily request limit reached"
			log.Info("pausing on rate limit",
				zap.Int("processed_this_run", res.Processed),
				zap.Int("remaining_items", len(items)-res.Processed-res.Skipped-res.Existing),
			)
			return res, nil

		case isCancel(ctx, err):
			res.Status = model.JobPaused
			res.Reason = "cancelled"
			return res, nil

		case resilience.IsNotFound(err):
			res.Skipped++
			e.recordSkip(run, item, "not_found", err, 1)
			log.Warn("case not found, skipping", zap.String("case_id", item.CaseID))

		default:
			// Retries exhausted (or an unclassified adapter error): the
			// item fails, the job continues.
			res.Skipped++
			e.recordSkip(run, item, "transient", err, run.attempts)
			log.Warn("giving up on case after retries",
				zap.String("case_id", item.CaseID),
				zap.Error(err),
			)
		}
	}

	res.Status = model.JobCompleted
	log.Info("job complete",
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("existing", res.Existing),
	)
	return res, nil
}

// SetRefetch toggles refetching of cases already present in storage.
func (e *Engine) SetRefetch(v bool) { e.opts.Refetch = v }

// FetchOne authenticates and fetches a single case through the budget and
// timing discipline, without persisting it or touching any checkpoint.
func (e *Engine) FetchOne(ctx context.Context, caseID string) (*model.CaseRecord, error) {
	defer e.adapter.Close()

	sess, err := e.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	run := &runState{sess: sess, log: zap.L().With(zap.String("component", "scrape.engine"))}

	return e.fetchItem(ctx, run, model.WorkItem{CaseID: caseID})
}

// Search authenticates and runs a single query through the budget and
// timing discipline, for display rather than persistence.
func (e *Engine) Search(ctx context.Context, query string, opts adapter.SearchOptions) ([]model.CaseSummary, error) {
	defer e.adapter.Close()

	sess, err := e.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	run := &runState{sess: sess, log: zap.L().With(zap.String("component", "scrape.engine"))}

	return call(e, ctx, run, "search", func(ctx context.Context, sess adapter.Session) ([]model.CaseSummary, error) {
		return e.adapter.Search(ctx, sess, query, opts)
	})
}

// Enumerate authenticates and lists a year's case ids through the budget and
// timing discipline.
func (e *Engine) Enumerate(ctx context.Context, year int) ([]string, error) {
	defer e.adapter.Close()

	sess, err := e.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	run := &runState{sess: sess, log: zap.L().With(zap.String("component", "scrape.engine"))}

	return call(e, ctx, run, "enumerate_by_year", func(ctx context.Context, sess adapter.Session) ([]string, error) {
		return e.adapter.EnumerateByYear(ctx, sess, year)
	})
}

// fetchItem runs one work item through the full discipline: budget check,
// human-timed wait, bounded retries with the same cadence, one
// re-authentication on session expiry.
func (e *Engine) fetchItem(ctx context.Context, run *runState, item model.WorkItem) (*model.CaseRecord, error) {
	run.reauthed = false
	run.attempts = 0
	first := true

	cfg := resilience.RetryConfig{
		MaxAttempts: e.opts.MaxRetries,
		Wait:        e.timing.Wait,
		OnRetry:     resilience.RetryLogger(e.adapter.Name(), "fetch_case"),
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.CaseRecord, error) {
		// The first attempt's budget check and wait run here too, so every
		// adapter call sits behind both gates.
		if err := e.consumeBudget(); err != nil {
			return nil, err
		}
		run.attempts++
		if first {
			first = false
			if err := e.timing.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return callOnce(e, ctx, run, "fetch_case", func(ctx context.Context, sess adapter.Session) (*model.CaseRecord, error) {
			return e.adapter.FetchCase(ctx, sess, item.CaseID)
		})
	})
}

// call wraps a plan-enumeration adapter call with the same budget, timing,
// and session discipline as item fetches, without retries: a failed
// enumeration fails the run's setup rather than one item.
func call[T any](e *Engine, ctx context.Context, run *runState, op string, fn func(context.Context, adapter.Session) (T, error)) (T, error) {
	var zero T
	if err := e.consumeBudget(); err != nil {
		return zero, err
	}
	if err := e.timing.Wait(ctx); err != nil {
		return zero, err
	}
	return callOnce(e, ctx, run, op, fn)
}

// callOnce performs a single adapter call under the per-call deadline,
// handling session expiry (one re-authentication per item) and classifying
// blown deadlines as timeouts when the job itself is still live.
func callOnce[T any](e *Engine, ctx context.Context, run *runState, op string, fn func(context.Context, adapter.Session) (T, error)) (T, error) {
	var zero T

	val, err := runUnderDeadline(e, ctx, run, fn)
	if err == nil {
		return val, nil
	}

	if errors.Is(err, resilience.ErrSessionExpired) {
		if run.reauthed {
			return zero, resilience.NewTransientError(err, 0)
		}
		run.reauthed = true
		run.log.Info("session expired, re-authenticating")
		sess, aerr := e.authenticate(ctx)
		if aerr != nil {
			return zero, aerr
		}
		run.sess = sess
		if val, err = runUnderDeadline(e, ctx, run, fn); err == nil {
			return val, nil
		}
	}

	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return zero, &resilience.TimeoutError{Op: op, Err: err}
	}
	return zero, err
}

func runUnderDeadline[T any](e *Engine, ctx context.Context, run *runState, fn func(context.Context, adapter.Session) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()
	return fn(cctx, run.sess)
}

// consumeBudget takes one request from the daily budget, translating
// exhaustion into the engine's pause sentinel.
func (e *Engine) consumeBudget() error {
	ok, err := e.limiter.Allow()
	if err != nil {
		return eris.Wrap(err, "scrape: rate limiter state")
	}
	if !ok {
		return errRateExhausted
	}
	return nil
}

// authenticate runs the adapter's login under the call timeout.
func (e *Engine) authenticate(ctx context.Context) (adapter.Session, error) {
	cctx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()
	return e.adapter.Authenticate(cctx)
}

// advance saves the checkpoint after a case is durably stored (or confirmed
// already stored).
func (e *Engine) advance(run *runState, caseID string) error {
	run.processed++
	return e.checkpoints.Save(checkpoint.Checkpoint{
		JobID:      run.jobID,
		LastCaseID: caseID,
		Processed:  run.processed,
	})
}

// recordSkip logs a given-up item to the skip log. Skip-log failures are
// logged, not fatal: the job's own output is unaffected.
func (e *Engine) recordSkip(run *runState, item model.WorkItem, kind string, err error, attempts int) {
	entry := resilience.SkipEntry{
		JobID:     run.jobID,
		CaseID:    item.CaseID,
		Reason:    err.Error(),
		ErrorType: kind,
		Attempts:  attempts,
	}
	if logErr := e.skips.Record(entry); logErr != nil {
		run.log.Error("failed to record skip", zap.Error(logErr))
	}
}

// isCancel reports whether err is the result of the job context being
// cancelled or timing out as a whole.
func isCancel(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
