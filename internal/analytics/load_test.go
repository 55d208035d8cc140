package analytics

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/caselaw-cli/internal/model"
	"github.com/sells-group/caselaw-cli/internal/storage"
)

func TestLoadCases(t *testing.T) {
	t.Parallel()
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)

	for i := 20; i >= 1; i-- {
		rec := &model.CaseRecord{
			ID:    fmt.Sprintf("case_%03d", i),
			Title: fmt.Sprintf("Case %d", i),
		}
		require.NoError(t, store.Persist(rec, "job", storage.FormatJSON))
	}

	cases, err := LoadCases(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, cases, 20)

	// Sorted by id regardless of load order.
	assert.Equal(t, "case_001", cases[0].ID)
	assert.Equal(t, "case_020", cases[19].ID)
}

func TestLoadCasesEmptyStore(t *testing.T) {
	t.Parallel()
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)

	cases, err := LoadCases(context.Background(), store)
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestLoadCasesCancelled(t *testing.T) {
	t.Parallel()
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Persist(&model.CaseRecord{ID: "case_001"}, "job", storage.FormatJSON))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = LoadCases(ctx, store)
	require.Error(t, err)
}
