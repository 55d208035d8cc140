package model

import (
	"fmt"
	"strings"
)

// PlanKind distinguishes how a job's work items are produced.
type PlanKind string

const (
	// PlanSearch derives work items from a search query's result summaries.
	PlanSearch PlanKind = "search"
	// PlanYear derives work items from a year enumeration.
	PlanYear PlanKind = "year"
)

// Plan describes what a job should scrape: a query for PlanSearch, or a year
// for PlanYear. Limit, when positive, caps how many items are fetched.
type Plan struct {
	Kind  PlanKind `json:"kind"`
	Query string   `json:"query,omitempty"`
	Year  int      `json:"year,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

// Param returns the plan's distinguishing parameter as a string.
func (p Plan) Param() string {
	if p.Kind == PlanYear {
		return fmt.Sprintf("%d", p.Year)
	}
	return p.Query
}

// JobID derives the durable job identifier for an adapter+plan pair. The same
// adapter, plan kind, and parameter always map to the same id, so checkpoints
// and output files line up across runs.
func JobID(adapter string, plan Plan) string {
	param := slugify(plan.Param())
	return fmt.Sprintf("%s-%s-%s", adapter, plan.Kind, param)
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// WorkItem is one unit of scraping work: a case identifier to fetch, tagged
// with the plan that produced it. Immutable once created.
type WorkItem struct {
	CaseID string   `json:"case_id"`
	Kind   PlanKind `json:"kind"`
}

// JobStatus is the terminal (or current) state of a job run.
type JobStatus string

const (
	JobRunning         JobStatus = "running"
	JobCompleted       JobStatus = "completed"
	JobPausedRateLimit JobStatus = "paused_rate_limit"
	JobPaused          JobStatus = "paused"
	JobFailed          JobStatus = "failed"
)

// Resumable reports whether a future run of the same job can pick up where
// this status left off. Failed jobs resume too: the checkpoint reflects the
// last safely persisted item.
func (s JobStatus) Resumable() bool {
	switch s {
	case JobPausedRateLimit, JobPaused, JobFailed:
		return true
	default:
		return false
	}
}
