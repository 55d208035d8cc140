// Package storage persists fetched case records in two durable formats: a
// pretty-printed JSON file per case for inspection, and an append-only JSONL
// log per job for downstream processing. Writes are idempotent under retry:
// the per-case format overwrites by identifier, and the JSONL log may carry
// duplicate lines; downstream consumers deduplicate by id.
package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/caselaw-cli/internal/model"
)

// Format selects which durable formats Persist writes.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatBoth  Format = "both"
)

// ParseFormat converts a config string into a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatJSONL, FormatBoth:
		return Format(s), nil
	default:
		return "", eris.Errorf("storage: unknown output format %q (valid: json, jsonl, both)", s)
	}
}

// Store owns the on-disk layout under a data directory:
//
//	<dir>/cases/<case_id>.json
//	<dir>/jsonl/<job_id>.jsonl
type Store struct {
	dir      string
	casesDir string
	jsonlDir string
}

// NewStore creates the layout under dir.
func NewStore(dir string) (*Store, error) {
	s := &Store{
		dir:      dir,
		casesDir: filepath.Join(dir, "cases"),
		jsonlDir: filepath.Join(dir, "jsonl"),
	}
	for _, d := range []string{s.casesDir, s.jsonlDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, eris.Wrapf(err, "storage: create dir %s", d)
		}
	}
	return s, nil
}

// Dir returns the data directory root.
func (s *Store) Dir() string { return s.dir }

// CasesDir returns the per-case JSON directory.
func (s *Store) CasesDir() string { return s.casesDir }

// Persist writes the record in the requested formats. It either completes
// both writes or returns an error; the caller must not advance its
// checkpoint until Persist returns nil. The record's ScrapedAt is stamped
// here if the adapter left it zero.
func (s *Store) Persist(record *model.CaseRecord, jobID string, format Format) error {
	if record.ID == "" {
		return eris.New("storage: record missing id")
	}
	if record.ScrapedAt.IsZero() {
		record.ScrapedAt = time.Now().UTC()
	}

	if format == FormatJSON || format == FormatBoth {
		if err := s.writeCaseFile(record); err != nil {
			return err
		}
	}
	if format == FormatJSONL || format == FormatBoth {
		if err := s.appendJSONL(record, jobID); err != nil {
			return err
		}
	}

	zap.L().Debug("persisted case",
		zap.String("case_id", record.ID),
		zap.String("job_id", jobID),
		zap.String("format", string(format)),
	)
	return nil
}

// writeCaseFile writes <cases>/<id>.json atomically, overwriting any
// previous version of the same case.
func (s *Store) writeCaseFile(record *model.CaseRecord) error {
	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "storage: marshal case %s", record.ID)
	}

	path := filepath.Join(s.casesDir, record.ID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return eris.Wrapf(err, "storage: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "storage: rename %s", path)
	}
	return nil
}

// appendJSONL appends one line to the job's log and fsyncs before returning,
// so a record reported persisted survives a crash.
func (s *Store) appendJSONL(record *model.CaseRecord, jobID string) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return eris.Wrapf(err, "storage: marshal case %s", record.ID)
	}

	path := filepath.Join(s.jsonlDir, jobID+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "storage: open %s", path)
	}
	defer f.Close()

	if _, err := f.Write(append(raw, '\n')); err != nil {
		return eris.Wrapf(err, "storage: append %s", path)
	}
	if err := f.Sync(); err != nil {
		return eris.Wrapf(err, "storage: sync %s", path)
	}
	return nil
}

// Has reports whether a case is already present in the per-case format.
func (s *Store) Has(caseID string) bool {
	_, err := os.Stat(filepath.Join(s.casesDir, caseID+".json"))
	return err == nil
}

// LoadCase reads one case from the per-case format.
func (s *Store) LoadCase(caseID string) (*model.CaseRecord, error) {
	path := filepath.Join(s.casesDir, caseID+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: read %s", path)
	}
	var record model.CaseRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, eris.Wrapf(err, "storage: parse %s", path)
	}
	return &record, nil
}

// CaseIDs returns the ids of all cases in the per-case format, sorted by
// filename order as returned by the OS.
func (s *Store) CaseIDs() ([]string, error) {
	entries, err := os.ReadDir(s.casesDir)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: list %s", s.casesDir)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// ReadJSONL streams the records in a job's log, deduplicated by case id:
// when retries appended the same case twice, the last line wins. This is the
// read path analytics consumers use.
func (s *Store) ReadJSONL(jobID string) ([]model.CaseRecord, error) {
	path := filepath.Join(s.jsonlDir, jobID+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: open %s", path)
	}
	defer f.Close()

	byID := make(map[string]model.CaseRecord)
	var order []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var record model.CaseRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, eris.Wrapf(err, "storage: parse line in %s", path)
		}
		if _, seen := byID[record.ID]; !seen {
			order = append(order, record.ID)
		}
		byID[record.ID] = record
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "storage: scan %s", path)
	}

	records := make([]model.CaseRecord, 0, len(order))
	for _, id := range order {
		records = append(records, byID[id])
	}
	return records, nil
}

// Stats summarizes what is on disk, for the status command.
type Stats struct {
	TotalCases int    `json:"total_cases"`
	JSONLFiles int    `json:"jsonl_files"`
	DataDir    string `json:"data_dir"`
}

// Stats counts persisted cases and job logs.
func (s *Store) Stats() (Stats, error) {
	ids, err := s.CaseIDs()
	if err != nil {
		return Stats{}, err
	}

	entries, err := os.ReadDir(s.jsonlDir)
	if err != nil {
		return Stats{}, eris.Wrapf(err, "storage: list %s", s.jsonlDir)
	}
	jsonl := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			jsonl++
		}
	}

	return Stats{
		TotalCases: len(ids),
		JSONLFiles: jsonl,
		DataDir:    s.dir,
	}, nil
}
