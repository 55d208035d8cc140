// Package ratelimit enforces a daily request budget per data source. The
// budget survives process restarts: the window state is persisted next to
// the scraped data so separate invocations against the same source share one
// budget.
package ratelimit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Window is the budget period.
const Window = 24 * time.Hour

// State is the persisted request count and window start for one source.
type State struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

// Remaining returns how much of the budget is left under the given limit.
func (s State) Remaining(limit int) int {
	if r := limit - s.Count; r > 0 {
		return r
	}
	return 0
}

// DailyLimiter is a check-and-increment limiter over a rolling daily window.
// Safe for concurrent use; the check and the increment are a single critical
// section so the count can never exceed the limit.
type DailyLimiter struct {
	mu    sync.Mutex
	state State
	limit int
	path  string

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// New loads (or initializes) the persisted window state for the named scope
// under dir. Scope is typically the adapter name, so all jobs against one
// source draw from the same budget.
func New(dir, scope string, limit int) (*DailyLimiter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "ratelimit: create dir %s", dir)
	}

	l := &DailyLimiter{
		limit:   limit,
		path:    filepath.Join(dir, scope+".ratestate.json"),
		nowFunc: time.Now,
	}

	raw, err := os.ReadFile(l.path)
	switch {
	case os.IsNotExist(err):
		l.state = State{WindowStart: l.nowFunc().UTC()}
	case err != nil:
		return nil, eris.Wrapf(err, "ratelimit: read state %s", l.path)
	default:
		if err := json.Unmarshal(raw, &l.state); err != nil {
			// A garbled state file is not worth refusing to run over; start
			// a fresh window and log it.
			zap.L().Warn("rate state unreadable, starting fresh window",
				zap.String("path", l.path), zap.Error(err))
			l.state = State{WindowStart: l.nowFunc().UTC()}
		}
	}

	return l, nil
}

// Allow resets the window if it has elapsed, then consumes one request from
// the budget if any remains. Returns false once the limit is reached; the
// caller must stop issuing requests, not merely warn.
func (l *DailyLimiter) Allow() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetIfElapsed()

	if l.state.Count >= l.limit {
		return false, nil
	}
	l.state.Count++
	if err := l.persist(); err != nil {
		return false, err
	}
	return true, nil
}

// State returns a snapshot of the current window state, resetting first if
// the window has elapsed.
func (l *DailyLimiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfElapsed()
	return l.state
}

// Limit returns the configured daily limit.
func (l *DailyLimiter) Limit() int {
	return l.limit
}

// resetIfElapsed zeroes the count and advances the window start once the
// current window has fully elapsed. Caller holds l.mu.
func (l *DailyLimiter) resetIfElapsed() {
	now := l.nowFunc().UTC()
	if now.Sub(l.state.WindowStart) >= Window {
		l.state = State{WindowStart: now}
	}
}

// persist writes the state atomically (temp file + rename). Caller holds l.mu.
func (l *DailyLimiter) persist() error {
	raw, err := json.Marshal(l.state)
	if err != nil {
		return eris.Wrap(err, "ratelimit: marshal state")
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return eris.Wrapf(err, "ratelimit: write %s", tmp)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return eris.Wrapf(err, "ratelimit: rename %s", l.path)
	}
	return nil
}
