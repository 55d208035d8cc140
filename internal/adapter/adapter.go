// Package adapter defines the capability contract every legal data source
// must implement, and a static registry of the sources this build knows.
// The scrape engine depends only on the contract shape; adapters share no
// implementation.
package adapter

import (
	"context"

	"github.com/sells-group/caselaw-cli/internal/model"
)

// Session is the opaque authentication state an adapter returns from
// Authenticate. The engine holds it for the job's duration and passes it
// back on every call; it re-authenticates when an adapter reports
// resilience.ErrSessionExpired.
type Session interface {
	// Adapter returns the name of the adapter that issued this session.
	Adapter() string
}

// SearchOptions narrows a search. Adapters ignore fields their source does
// not support.
type SearchOptions struct {
	Court string
	Year  int
	Limit int
}

// Adapter is the four-operation contract for a legal data source. All
// operations honor ctx cancellation and deadlines; an operation that exceeds
// its deadline returns a resilience.TimeoutError, which the engine treats as
// transient. Search and EnumerateByYear must return stable, finite orderings
// across repeated identical calls so resume positions stay meaningful.
type Adapter interface {
	// Name returns the unique adapter identifier (e.g. "example", "restapi").
	Name() string

	// Authenticate establishes a session with the source. Invalid
	// credentials or an unreachable host surface as *resilience.AuthError.
	Authenticate(ctx context.Context) (Session, error)

	// Search returns result summaries for a query, in source order.
	Search(ctx context.Context, sess Session, query string, opts SearchOptions) ([]model.CaseSummary, error)

	// FetchCase returns one full record. Unknown identifiers surface as
	// *resilience.NotFoundError; retryable network failures as
	// *resilience.TransientError.
	FetchCase(ctx context.Context, sess Session, caseID string) (*model.CaseRecord, error)

	// EnumerateByYear lists all known case identifiers for a year, in
	// source order.
	EnumerateByYear(ctx context.Context, sess Session, year int) ([]string, error)

	// Close releases any resources the adapter holds (HTTP connections,
	// cached sessions). Called on every job exit path.
	Close() error
}
