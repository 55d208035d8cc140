package model

import "time"

// CaseSummary is the lightweight search-result form of a case: enough to
// identify and display it, not the full judgment.
type CaseSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
	Court string `json:"court,omitempty"`
}

// CaseRecord is the full fetched form of a legal document. Adapters populate
// whichever fields the source exposes; only ID, Title, and Source are
// guaranteed. Extra carries source-specific fields that have no column here.
type CaseRecord struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Citation  string            `json:"citation,omitempty"`
	Court     string            `json:"court,omitempty"`
	Date      string            `json:"date,omitempty"`
	Year      int               `json:"year,omitempty"`
	Judges    []string          `json:"judges,omitempty"`
	Text      string            `json:"text,omitempty"`
	Headnote  string            `json:"headnote,omitempty"`
	Source    string            `json:"source"`
	ScrapedAt time.Time         `json:"scraped_at"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Summary reduces a full record to its search-result form.
func (r *CaseRecord) Summary() CaseSummary {
	return CaseSummary{
		ID:    r.ID,
		Title: r.Title,
		Year:  r.Year,
		Court: r.Court,
	}
}
