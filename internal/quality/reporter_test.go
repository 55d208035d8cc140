package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/caselaw-cli/internal/model"
)

func TestBuildReport(t *testing.T) {
	t.Parallel()
	cases := []model.CaseRecord{
		*completeRecord(),
		{ID: "case_002", Title: "Short-titled but otherwise empty case"},
		{ID: "case_003"}, // missing title entirely
	}

	report := BuildReport(cases, nil)

	assert.Equal(t, 3, report.TotalCases)
	assert.Equal(t, 2, report.ValidCases)
	assert.Equal(t, 1, report.InvalidCases)
	assert.InDelta(t, 2.0/3.0, report.PassRate, 1e-9)
	assert.False(t, report.GeneratedAt.IsZero())

	// Every case contributes to exactly one histogram bucket.
	total := 0
	for _, n := range report.Histogram {
		total += n
	}
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, report.Histogram["0.8-1.0"], "the complete record")

	assert.Greater(t, report.SeverityCounts[SeverityWarning], 0)
	assert.Greater(t, report.SeverityCounts[SeverityError], 0)

	require.NotEmpty(t, report.TopIssues)
	assert.Greater(t, report.TopIssues[0].Cases, 0)

	// The id field is populated in all three records.
	assert.InDelta(t, 1.0, report.FieldScores["id"], 1e-9)
	assert.Less(t, report.FieldScores["text"], 1.0)
}

func TestBuildReportEmptyDataset(t *testing.T) {
	t.Parallel()
	report := BuildReport(nil, nil)
	assert.Zero(t, report.TotalCases)
	assert.Zero(t, report.PassRate)
	assert.Empty(t, report.TopIssues)
}
