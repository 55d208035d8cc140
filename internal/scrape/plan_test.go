package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sells-group/caselaw-cli/internal/model"
)

func items(ids ...string) []model.WorkItem {
	out := make([]model.WorkItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.WorkItem{CaseID: id, Kind: model.PlanSearch})
	}
	return out
}

func TestResumeFrom(t *testing.T) {
	t.Parallel()
	log := zap.NewNop()

	tests := []struct {
		name   string
		items  []model.WorkItem
		cursor string
		want   []model.WorkItem
	}{
		{"empty cursor keeps all", items("a", "b", "c"), "", items("a", "b", "c")},
		{"cursor mid list", items("a", "b", "c"), "b", items("c")},
		{"cursor at start", items("a", "b", "c"), "a", items("b", "c")},
		{"cursor at end leaves nothing", items("a", "b", "c"), "c", items()},
		{"vanished cursor reprocesses all", items("a", "b", "c"), "z", items("a", "b", "c")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := resumeFrom(tt.items, tt.cursor, log)
			assert.Equal(t, tt.want, got)
		})
	}
}
