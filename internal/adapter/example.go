package adapter

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/caselaw-cli/internal/model"
	"github.com/sells-group/caselaw-cli/internal/resilience"
)

// Example is a deterministic in-memory adapter: a template for writing real
// ones and the workhorse of engine tests and demos. Ordering of search and
// enumeration results is fixed, so resume positions are meaningful.
//
// The failure-injection fields make engine behavior testable without a
// network: ids listed in NotFound return NotFoundError, and ids in
// TransientFails fail that many times before succeeding.
type Example struct {
	// CasesPerYear controls how many ids EnumerateByYear returns. Default 10.
	CasesPerYear int

	// NotFound lists case ids FetchCase reports as unknown.
	NotFound map[string]bool

	// TransientFails maps case id to a count of transient failures to
	// inject before the fetch succeeds. Decremented as failures are served.
	TransientFails map[string]int

	// AuthErr, when set, makes Authenticate fail with it.
	AuthErr error

	// ExpireSessionAfter, when positive, makes every operation after that
	// many calls fail once with ErrSessionExpired, emulating a source that
	// drops idle sessions. Re-authentication resets the counter.
	ExpireSessionAfter int

	calls int
}

// exampleSession is the token Example issues. Opaque to the engine.
type exampleSession struct{}

func (exampleSession) Adapter() string { return "example" }

// NewExample returns an example adapter with default fixtures.
func NewExample() *Example {
	return &Example{CasesPerYear: 10}
}

func (a *Example) Name() string { return "example" }

func (a *Example) Authenticate(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.AuthErr != nil {
		return nil, &resilience.AuthError{Adapter: a.Name(), Err: a.AuthErr}
	}
	a.calls = 0
	return exampleSession{}, nil
}

func (a *Example) Search(ctx context.Context, sess Session, query string, opts SearchOptions) ([]model.CaseSummary, error) {
	if err := a.checkCall(ctx, sess); err != nil {
		return nil, err
	}

	summaries := []model.CaseSummary{
		{ID: "case_001", Title: "Example Case - " + query, Year: 2024},
		{ID: "case_002", Title: "Another Case - " + query, Year: 2024},
		{ID: "case_003", Title: "Third Case - " + query, Year: 2023},
	}
	if opts.Limit > 0 && opts.Limit < len(summaries) {
		summaries = summaries[:opts.Limit]
	}
	return summaries, nil
}

func (a *Example) FetchCase(ctx context.Context, sess Session, caseID string) (*model.CaseRecord, error) {
	if err := a.checkCall(ctx, sess); err != nil {
		return nil, err
	}

	if a.NotFound[caseID] {
		return nil, &resilience.NotFoundError{CaseID: caseID}
	}
	if n := a.TransientFails[caseID]; n > 0 {
		a.TransientFails[caseID] = n - 1
		return nil, resilience.NewTransientError(eris.Errorf("example: simulated outage fetching %s", caseID), 503)
	}

	suffix := caseID
	if len(suffix) > 3 {
		suffix = suffix[len(suffix)-3:]
	}
	return &model.CaseRecord{
		ID:       caseID,
		Title:    "Example Case " + caseID,
		Citation: "2024 EX " + suffix,
		Court:    "Example High Court",
		Date:     "2024-01-15",
		Year:     2024,
		Judges:   []string{"Justice A", "Justice B"},
		Text:     "This is the full text of the judgment in " + caseID + ". See Section 302 PPC and Article 199.",
		Headnote: "Brief summary of " + caseID + ".",
		Source:   a.Name(),
	}, nil
}

func (a *Example) EnumerateByYear(ctx context.Context, sess Session, year int) ([]string, error) {
	if err := a.checkCall(ctx, sess); err != nil {
		return nil, err
	}

	n := a.CasesPerYear
	if n <= 0 {
		n = 10
	}
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, fmt.Sprintf("case_%d_%03d", year, i))
	}
	return ids, nil
}

func (a *Example) Close() error { return nil }

// checkCall enforces the session and cancellation preconditions shared by
// every operation.
func (a *Example) checkCall(ctx context.Context, sess Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sess == nil {
		return eris.New("example: no session (call Authenticate first)")
	}
	a.calls++
	if a.ExpireSessionAfter > 0 && a.calls > a.ExpireSessionAfter {
		a.calls = 0
		return resilience.ErrSessionExpired
	}
	return nil
}
