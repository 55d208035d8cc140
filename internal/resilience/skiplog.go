package resilience

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// SkipEntry records a work item the engine gave up on, with enough context
// for an operator to re-drive it later.
type SkipEntry struct {
	JobID     string    `json:"job_id"`
	CaseID    string    `json:"case_id"`
	Reason    string    `json:"reason"`
	ErrorType string    `json:"error_type"` // "not_found" or "transient"
	Attempts  int       `json:"attempts"`
	SkippedAt time.Time `json:"skipped_at"`
}

// SkipLog appends skipped work items to a per-job JSONL file under dir.
// Append-only: re-driving a skipped item is an operator action, not engine
// state, so entries are never rewritten.
type SkipLog struct {
	dir string
}

// NewSkipLog creates the skip log directory if needed.
func NewSkipLog(dir string) (*SkipLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "skiplog: create dir %s", dir)
	}
	return &SkipLog{dir: dir}, nil
}

// Record appends one entry to the job's skip file.
func (l *SkipLog) Record(entry SkipEntry) error {
	if entry.SkippedAt.IsZero() {
		entry.SkippedAt = time.Now().UTC()
	}

	path := filepath.Join(l.dir, entry.JobID+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "skiplog: open %s", path)
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "skiplog: marshal entry")
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return eris.Wrapf(err, "skiplog: append %s", path)
	}
	return f.Sync()
}

// List returns all skip entries recorded for a job, oldest first. A missing
// skip file means no skips.
func (l *SkipLog) List(jobID string) ([]SkipEntry, error) {
	path := filepath.Join(l.dir, jobID+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "skiplog: open %s", path)
	}
	defer f.Close()

	var entries []SkipEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e SkipEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, eris.Wrapf(err, "skiplog: parse line in %s", path)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "skiplog: scan %s", path)
	}
	return entries, nil
}
