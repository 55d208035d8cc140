// Package quality checks persisted datasets: schema validation with
// completeness scoring, near-duplicate detection, and aggregated reporting.
// Like analytics, it is a pure read-side consumer of storage.
package quality

import (
	"fmt"
	"regexp"

	"github.com/sells-group/caselaw-cli/internal/model"
)

// Severity classifies validation issues.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is a single problem found in one case.
type Issue struct {
	Field    string   `json:"field"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Field, i.Message)
}

// Result is the outcome of validating one case. A case is valid when it has
// no error-severity issues.
type Result struct {
	CaseID       string             `json:"case_id"`
	Valid        bool               `json:"valid"`
	Issues       []Issue            `json:"issues,omitempty"`
	Completeness float64            `json:"completeness_score"`
	FieldScores  map[string]float64 `json:"field_scores"`
}

// Errors returns only the error-severity issues.
func (r Result) Errors() []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// FieldSpec describes expectations for one case field. Weight feeds the
// completeness score; required fields produce errors when absent, optional
// ones warnings.
type FieldSpec struct {
	Name     string
	Required bool
	MinLen   int
	Pattern  *regexp.Regexp
	Weight   float64
	Value    func(r *model.CaseRecord) string
}

// DefaultSchema returns the field expectations for a legal case record.
func DefaultSchema() []FieldSpec {
	return []FieldSpec{
		{Name: "id", Required: true, MinLen: 1, Weight: 1.0,
			Value: func(r *model.CaseRecord) string { return r.ID }},
		{Name: "title", Required: true, MinLen: 5, Weight: 1.0,
			Value: func(r *model.CaseRecord) string { return r.Title }},
		{Name: "citation", MinLen: 3, Weight: 0.9,
			Pattern: regexp.MustCompile(`.+\d+.*`), // should contain a digit
			Value:   func(r *model.CaseRecord) string { return r.Citation }},
		{Name: "court", MinLen: 2, Weight: 0.8,
			Value: func(r *model.CaseRecord) string { return r.Court }},
		{Name: "date", Weight: 0.7,
			Pattern: regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
			Value:   func(r *model.CaseRecord) string { return r.Date }},
		{Name: "text", MinLen: 50, Weight: 1.0,
			Value: func(r *model.CaseRecord) string { return r.Text }},
		{Name: "headnote", MinLen: 10, Weight: 0.5,
			Value: func(r *model.CaseRecord) string { return r.Headnote }},
	}
}

// Validator applies a schema to case records.
type Validator struct {
	schema []FieldSpec
}

// NewValidator builds a validator; nil schema means DefaultSchema.
func NewValidator(schema []FieldSpec) *Validator {
	if schema == nil {
		schema = DefaultSchema()
	}
	return &Validator{schema: schema}
}

// Validate checks one record against the schema and scores its completeness
// as the weighted fraction of fields that are present and well-formed.
func (v *Validator) Validate(r *model.CaseRecord) Result {
	res := Result{
		CaseID:      r.ID,
		FieldScores: make(map[string]float64, len(v.schema)),
	}

	var totalWeight, earned float64
	for _, spec := range v.schema {
		totalWeight += spec.Weight
		score, issues := checkField(spec, r)
		res.FieldScores[spec.Name] = score
		earned += score * spec.Weight
		res.Issues = append(res.Issues, issues...)
	}

	if totalWeight > 0 {
		res.Completeness = earned / totalWeight
	}
	res.Valid = len(res.Errors()) == 0
	return res
}

// ValidateAll validates every record.
func (v *Validator) ValidateAll(cases []model.CaseRecord) []Result {
	results := make([]Result, 0, len(cases))
	for i := range cases {
		results = append(results, v.Validate(&cases[i]))
	}
	return results
}

// checkField scores one field: 1.0 present and well-formed, 0.5 present but
// failing a length or pattern check, 0.0 absent.
func checkField(spec FieldSpec, r *model.CaseRecord) (float64, []Issue) {
	value := spec.Value(r)

	if value == "" {
		severity := SeverityWarning
		if spec.Required {
			severity = SeverityError
		}
		return 0, []Issue{{
			Field:    spec.Name,
			Severity: severity,
			Message:  "missing",
		}}
	}

	var issues []Issue
	score := 1.0
	if spec.MinLen > 0 && len(value) < spec.MinLen {
		score = 0.5
		issues = append(issues, Issue{
			Field:    spec.Name,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("shorter than %d characters", spec.MinLen),
		})
	}
	if spec.Pattern != nil && !spec.Pattern.MatchString(value) {
		score = 0.5
		issues = append(issues, Issue{
			Field:    spec.Name,
			Severity: SeverityWarning,
			Message:  "does not match expected format",
		})
	}
	return score, issues
}
