package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/store"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/store/memory"
)

func seedPage(t *testing.T, s *memory.PageStore, pageID string, stage pipeline.Stage, qaPassed *bool) {
	t.Helper()
	now := time.Unix(1700000000, 0).UTC()
	content := "draft"

	page := pipeline.NewPageRecord("proj-1", pageID, "kw", now)
	page.Stage = stage
	page.QAPassed = qaPassed
	if stage == pipeline.StageComplete {
		page.GeneratedContent = &content
	}
	require.NoError(t, s.CreatePages(context.Background(), []pipeline.PageRecord{page}))
}

func boolPtr(b bool) *bool { return &b }

func TestApproveEligiblePage(t *testing.T) {
	t.Parallel()

	s := memory.NewPageStore()
	seedPage(t, s, "page-1", pipeline.StageComplete, boolPtr(true))

	gate := NewGate(s)
	require.NoError(t, gate.Approve(context.Background(), "page-1"))

	page, err := s.Get(context.Background(), "page-1")
	require.NoError(t, err)
	require.True(t, page.IsApproved)

	// Re-approval is a no-op.
	require.NoError(t, gate.Approve(context.Background(), "page-1"))
}

func TestApproveRejectsIneligiblePages(t *testing.T) {
	t.Parallel()

	s := memory.NewPageStore()
	seedPage(t, s, "incomplete", pipeline.StageWriting, nil)
	seedPage(t, s, "qa-failed", pipeline.StageComplete, boolPtr(false))
	seedPage(t, s, "no-verdict", pipeline.StagePending, nil)

	gate := NewGate(s)
	for _, pageID := range []string{"incomplete", "qa-failed", "no-verdict"} {
		err := gate.Approve(context.Background(), pageID)
		require.ErrorIs(t, err, ErrNotEligible, pageID)
	}

	err := gate.Approve(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBulkApprove(t *testing.T) {
	t.Parallel()

	s := memory.NewPageStore()
	seedPage(t, s, "page-1", pipeline.StageComplete, boolPtr(true))
	seedPage(t, s, "page-2", pipeline.StageComplete, boolPtr(true))
	seedPage(t, s, "page-3", pipeline.StageComplete, boolPtr(false))
	seedPage(t, s, "page-4", pipeline.StageFailed, nil)

	gate := NewGate(s)
	n, err := gate.BulkApprove(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = gate.BulkApprove(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = gate.BulkApprove(context.Background(), "nope")
	require.ErrorIs(t, err, store.ErrProjectNotFound)
}
