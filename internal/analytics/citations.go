// Package analytics runs post-hoc transforms over the persisted case output:
// citation extraction, dataset statistics, and glossary building. It reads
// only what the storage layer wrote; nothing here touches the network or the
// engine.
package analytics

import (
	"regexp"
	"sort"

	"github.com/sells-group/caselaw-cli/internal/model"
)

// Default citation patterns. Jurisdiction-specific callers can extend them
// via NewExtractor.
var defaultPatterns = map[string]string{
	"case_citation":   `\d{4}\s+[A-Z]{2,6}\s+\d+`,
	"statute_section": `[Ss]ection\s+\d+[A-Za-z]?(?:\s*\([a-z0-9]+\))?`,
	"article":         `[Aa]rticle\s+\d+[A-Za-z]?(?:\s*\([a-z0-9]+\))?`,
	"order_rule":      `[Oo]rder\s+[IVXLCDM]+\s+[Rr]ule\s+\d+`,
}

// Extractor pulls legal citations (case references, statute sections,
// constitutional articles, order/rule references) out of judgment text.
type Extractor struct {
	compiled map[string]*regexp.Regexp
}

// NewExtractor builds an extractor from the default patterns merged with any
// custom ones. Custom patterns win on name collision.
func NewExtractor(custom map[string]string) (*Extractor, error) {
	compiled := make(map[string]*regexp.Regexp, len(defaultPatterns)+len(custom))
	for name, pattern := range defaultPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled[name] = re
	}
	for name, pattern := range custom {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled[name] = re
	}
	return &Extractor{compiled: compiled}, nil
}

// Extract returns the deduplicated citations found in text, keyed by
// pattern name. Types with no matches are absent from the map.
func (e *Extractor) Extract(text string) map[string][]string {
	results := make(map[string][]string)
	for name, re := range e.compiled {
		matches := re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		seen := make(map[string]bool, len(matches))
		var unique []string
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				unique = append(unique, m)
			}
		}
		sort.Strings(unique)
		results[name] = unique
	}
	return results
}

// Count tallies every citation occurrence in text, duplicates included.
func (e *Extractor) Count(text string) map[string]int {
	counts := make(map[string]int)
	for _, re := range e.compiled {
		for _, m := range re.FindAllString(text, -1) {
			counts[m]++
		}
	}
	return counts
}

// CitationCount pairs a citation with how often it appears, for ranked output.
type CitationCount struct {
	Citation string `json:"citation"`
	Count    int    `json:"count"`
}

// CitationReport aggregates citation analysis over a dataset.
type CitationReport struct {
	TotalCitations     int             `json:"total_citations"`
	UniqueCitations    int             `json:"unique_citations"`
	CasesAnalyzed      int             `json:"cases_analyzed"`
	CasesWithCitations int             `json:"cases_with_citations"`
	MostCited          []CitationCount `json:"most_cited"`
	AvgPerCase         float64         `json:"avg_per_case"`
}

// AnalyzeCitations runs the extractor over every case's text and aggregates.
func AnalyzeCitations(cases []model.CaseRecord, extractor *Extractor) CitationReport {
	all := make(map[string]int)
	withCitations := 0

	for _, c := range cases {
		if c.Text == "" {
			continue
		}
		counts := extractor.Count(c.Text)
		if len(counts) > 0 {
			withCitations++
		}
		for cit, n := range counts {
			all[cit] += n
		}
	}

	total := 0
	for _, n := range all {
		total += n
	}

	report := CitationReport{
		TotalCitations:     total,
		UniqueCitations:    len(all),
		CasesAnalyzed:      len(cases),
		CasesWithCitations: withCitations,
		MostCited:          topN(all, 20),
	}
	if len(cases) > 0 {
		report.AvgPerCase = float64(total) / float64(len(cases))
	}
	return report
}

// topN ranks counts descending, ties broken alphabetically for stable output.
func topN(counts map[string]int, n int) []CitationCount {
	ranked := make([]CitationCount, 0, len(counts))
	for c, cnt := range counts {
		ranked = append(ranked, CitationCount{Citation: c, Count: cnt})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Citation < ranked[j].Citation
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
