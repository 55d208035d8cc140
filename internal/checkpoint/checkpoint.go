// Package checkpoint persists per-job scraping progress so interrupted jobs
// resume where they left off instead of refetching. A checkpoint is only
// written after the record it names has been durably persisted, so the
// cursor can never point past the stored data.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/caselaw-cli/internal/resilience"
)

// Checkpoint is the durable cursor for one job.
type Checkpoint struct {
	JobID      string    `json:"job_id"`
	LastCaseID string    `json:"last_case_id"`
	Processed  int       `json:"processed"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store reads and writes one checkpoint file per job id under a directory.
type Store struct {
	dir string
}

// NewStore creates the checkpoint directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "checkpoint: create dir %s", dir)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".checkpoint.json")
}

// Load returns the checkpoint for a job, or nil if the job has never run.
// A file that exists but cannot be parsed or is internally inconsistent is
// fatal: resuming from it risks silent duplication or loss, so the error
// wraps resilience.ErrCheckpointCorrupt for the operator to resolve.
func (s *Store) Load(jobID string) (*Checkpoint, error) {
	raw, err := os.ReadFile(s.path(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "checkpoint: read %s", s.path(jobID))
	}

	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, eris.Wrapf(resilience.ErrCheckpointCorrupt, "checkpoint: parse %s: %v", s.path(jobID), err)
	}
	if cp.JobID != jobID || cp.LastCaseID == "" || cp.Processed <= 0 {
		return nil, eris.Wrapf(resilience.ErrCheckpointCorrupt, "checkpoint: inconsistent state in %s", s.path(jobID))
	}
	return &cp, nil
}

// Save writes the checkpoint atomically: the new state is written to a temp
// file and renamed over the old one, so an interrupted save leaves the
// previous checkpoint intact rather than a torn file.
func (s *Store) Save(cp Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}

	raw, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return eris.Wrap(err, "checkpoint: marshal")
	}

	path := s.path(cp.JobID)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return eris.Wrapf(err, "checkpoint: open %s", tmp)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		return eris.Wrapf(err, "checkpoint: write %s", tmp)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return eris.Wrapf(err, "checkpoint: sync %s", tmp)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "checkpoint: close %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "checkpoint: rename %s", path)
	}
	return nil
}

// Delete removes a job's checkpoint. Not an error if it does not exist.
func (s *Store) Delete(jobID string) error {
	err := os.Remove(s.path(jobID))
	if err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "checkpoint: delete %s", s.path(jobID))
	}
	return nil
}

// List returns all stored checkpoints, for status reporting.
func (s *Store) List() ([]Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: list %s", s.dir)
	}

	var cps []Checkpoint
	for _, e := range entries {
		name := e.Name()
		const suffix = ".checkpoint.json"
		if e.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		cp, err := s.Load(strings.TrimSuffix(name, suffix))
		if err != nil {
			return nil, err
		}
		if cp != nil {
			cps = append(cps, *cp)
		}
	}
	return cps, nil
}
