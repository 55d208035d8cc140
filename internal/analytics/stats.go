package analytics

import (
	"sort"

	"github.com/sells-group/caselaw-cli/internal/model"
)

// TextStats summarizes judgment text lengths across a dataset.
type TextStats struct {
	AvgLength     int `json:"avg_length"`
	MaxLength     int `json:"max_length"`
	MinLength     int `json:"min_length"`
	CasesWithText int `json:"cases_with_text"`
}

// Stats is the dataset statistics report.
type Stats struct {
	TotalCases int            `json:"total_cases"`
	Courts     map[string]int `json:"courts"`
	Years      map[int]int    `json:"years"`
	Text       TextStats      `json:"text_stats"`
	TopJudges  map[string]int `json:"top_judges"`
}

// GenerateStats computes court/year distributions, text length stats, and
// judge frequency over a dataset.
func GenerateStats(cases []model.CaseRecord) Stats {
	stats := Stats{
		TotalCases: len(cases),
		Courts:     make(map[string]int),
		Years:      make(map[int]int),
		TopJudges:  make(map[string]int),
	}

	judgeCounts := make(map[string]int)
	var lengths []int
	for _, c := range cases {
		court := c.Court
		if court == "" {
			court = "Unknown"
		}
		stats.Courts[court]++
		if c.Year != 0 {
			stats.Years[c.Year]++
		}
		if c.Text != "" {
			lengths = append(lengths, len(c.Text))
		}
		for _, j := range c.Judges {
			judgeCounts[j]++
		}
	}

	stats.Text = textStats(lengths)
	stats.TopJudges = topCounts(judgeCounts, 10)
	stats.Courts = topCounts(stats.Courts, 10)
	return stats
}

// PeriodComparison contrasts two year ranges of the same dataset.
type PeriodComparison struct {
	Period1         Stats `json:"period1"`
	Period2         Stats `json:"period2"`
	CaseCountChange int   `json:"case_count_change"`
	AvgLengthChange int   `json:"avg_length_change"`
}

// ComparePeriods computes stats for the cases falling in each inclusive year
// range and their deltas.
func ComparePeriods(cases []model.CaseRecord, start1, end1, start2, end2 int) PeriodComparison {
	inPeriod := func(c model.CaseRecord, lo, hi int) bool {
		return c.Year != 0 && c.Year >= lo && c.Year <= hi
	}

	var set1, set2 []model.CaseRecord
	for _, c := range cases {
		if inPeriod(c, start1, end1) {
			set1 = append(set1, c)
		}
		if inPeriod(c, start2, end2) {
			set2 = append(set2, c)
		}
	}

	s1 := GenerateStats(set1)
	s2 := GenerateStats(set2)
	return PeriodComparison{
		Period1:         s1,
		Period2:         s2,
		CaseCountChange: s2.TotalCases - s1.TotalCases,
		AvgLengthChange: s2.Text.AvgLength - s1.Text.AvgLength,
	}
}

func textStats(lengths []int) TextStats {
	if len(lengths) == 0 {
		return TextStats{}
	}
	sum, maxL, minL := 0, lengths[0], lengths[0]
	for _, l := range lengths {
		sum += l
		if l > maxL {
			maxL = l
		}
		if l < minL {
			minL = l
		}
	}
	return TextStats{
		AvgLength:     sum / len(lengths),
		MaxLength:     maxL,
		MinLength:     minL,
		CasesWithText: len(lengths),
	}
}

// topCounts keeps the n highest-count entries of m.
func topCounts(m map[string]int, n int) map[string]int {
	if len(m) <= n {
		return m
	}
	type kv struct {
		k string
		v int
	}
	ranked := make([]kv, 0, len(m))
	for k, v := range m {
		ranked = append(ranked, kv{k, v})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].v != ranked[j].v {
			return ranked[i].v > ranked[j].v
		}
		return ranked[i].k < ranked[j].k
	})
	out := make(map[string]int, n)
	for _, e := range ranked[:n] {
		out[e.k] = e.v
	}
	return out
}
