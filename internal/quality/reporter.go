package quality

import (
	"sort"
	"time"

	"github.com/sells-group/caselaw-cli/internal/model"
)

// IssueCount ranks a recurring issue by how many cases it affects.
type IssueCount struct {
	Field    string   `json:"field"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Cases    int      `json:"cases"`
}

// Report aggregates validation over a dataset.
type Report struct {
	GeneratedAt     time.Time          `json:"generated_at"`
	TotalCases      int                `json:"total_cases"`
	ValidCases      int                `json:"valid_cases"`
	InvalidCases    int                `json:"invalid_cases"`
	PassRate        float64            `json:"pass_rate"`
	AvgCompleteness float64            `json:"avg_completeness"`
	FieldScores     map[string]float64 `json:"field_completeness"`
	SeverityCounts  map[Severity]int   `json:"severity_counts"`
	TopIssues       []IssueCount       `json:"top_issues"`
	Histogram       map[string]int     `json:"completeness_distribution"`
}

// BuildReport validates every case and aggregates pass rate, per-field
// completeness, recurring issues, and a completeness histogram.
func BuildReport(cases []model.CaseRecord, v *Validator) Report {
	if v == nil {
		v = NewValidator(nil)
	}
	results := v.ValidateAll(cases)

	report := Report{
		GeneratedAt:    time.Now().UTC(),
		TotalCases:     len(results),
		FieldScores:    make(map[string]float64),
		SeverityCounts: make(map[Severity]int),
		Histogram:      map[string]int{"0.0-0.5": 0, "0.5-0.8": 0, "0.8-1.0": 0},
	}

	fieldTotals := make(map[string]float64)
	issueCases := make(map[IssueCount]int)
	var completenessSum float64

	for _, r := range results {
		if r.Valid {
			report.ValidCases++
		} else {
			report.InvalidCases++
		}
		completenessSum += r.Completeness

		switch {
		case r.Completeness < 0.5:
			report.Histogram["0.0-0.5"]++
		case r.Completeness < 0.8:
			report.Histogram["0.5-0.8"]++
		default:
			report.Histogram["0.8-1.0"]++
		}

		for field, score := range r.FieldScores {
			fieldTotals[field] += score
		}
		for _, issue := range r.Issues {
			report.SeverityCounts[issue.Severity]++
			key := IssueCount{Field: issue.Field, Severity: issue.Severity, Message: issue.Message}
			issueCases[key]++
		}
	}

	if len(results) > 0 {
		report.PassRate = float64(report.ValidCases) / float64(len(results))
		report.AvgCompleteness = completenessSum / float64(len(results))
		for field, total := range fieldTotals {
			report.FieldScores[field] = total / float64(len(results))
		}
	}

	for key, n := range issueCases {
		key.Cases = n
		report.TopIssues = append(report.TopIssues, key)
	}
	sort.Slice(report.TopIssues, func(i, j int) bool {
		if report.TopIssues[i].Cases != report.TopIssues[j].Cases {
			return report.TopIssues[i].Cases > report.TopIssues[j].Cases
		}
		return report.TopIssues[i].Field < report.TopIssues[j].Field
	})
	if len(report.TopIssues) > 10 {
		report.TopIssues = report.TopIssues[:10]
	}
	return report
}
