package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/store"
)

func newPage(pageID, projectID, keyword string) pipeline.PageRecord {
	page := pipeline.NewPageRecord(projectID, pageID, keyword, time.Unix(1700000000, 0).UTC())
	page.URL = "https://example.com/" + pageID
	return page
}

func TestPageStoreCreateAndGet(t *testing.T) {
	t.Parallel()

	s := NewPageStore()
	ctx := context.Background()

	pages := []pipeline.PageRecord{
		newPage("page-1", "proj-1", "standing desk"),
		newPage("page-2", "proj-1", "desk mat"),
	}
	require.NoError(t, s.CreatePages(ctx, pages))

	got, err := s.Get(ctx, "page-1")
	require.NoError(t, err)
	require.Equal(t, pipeline.StagePending, got.Stage)
	require.Equal(t, "standing desk", got.Keyword)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.CreatePages(ctx, []pipeline.PageRecord{newPage("page-1", "proj-1", "dup")})
	require.Error(t, err)
}

func TestPageStoreListByProject(t *testing.T) {
	t.Parallel()

	s := NewPageStore()
	ctx := context.Background()

	require.NoError(t, s.CreatePages(ctx, []pipeline.PageRecord{
		newPage("page-1", "proj-1", "kw one"),
		newPage("page-2", "proj-1", "kw two"),
		newPage("page-3", "proj-2", "kw three"),
	}))

	pages, err := s.ListByProject(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.Equal(t, "page-1", pages[0].PageID)
	require.Equal(t, "page-2", pages[1].PageID)

	_, err = s.ListByProject(ctx, "nope")
	require.ErrorIs(t, err, store.ErrProjectNotFound)
}

func TestPageStoreUpsertIsolatesCallers(t *testing.T) {
	t.Parallel()

	s := NewPageStore()
	ctx := context.Background()

	page := newPage("page-1", "proj-1", "standing desk")
	page.Brief = &pipeline.Brief{Keyword: "standing desk", WordCount: 900, RequiredTerms: []string{"ergonomic"}}
	require.NoError(t, s.Upsert(ctx, page))

	// Mutating the caller's copy must not leak into the store.
	page.Brief.RequiredTerms[0] = "changed"

	got, err := s.Get(ctx, "page-1")
	require.NoError(t, err)
	require.Equal(t, []string{"ergonomic"}, got.Brief.RequiredTerms)

	got.Stage = pipeline.StageWriting
	require.NoError(t, s.Upsert(ctx, got))

	again, err := s.Get(ctx, "page-1")
	require.NoError(t, err)
	require.Equal(t, pipeline.StageWriting, again.Stage)
}

func TestPageStoreBulkApproveIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewPageStore()
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	passed := true
	failed := false
	content := "draft"

	eligible := newPage("page-1", "proj-1", "kw one")
	eligible.Stage = pipeline.StageComplete
	eligible.QAPassed = &passed
	eligible.GeneratedContent = &content
	eligible.UpdatedAt = now

	qaFailed := newPage("page-2", "proj-1", "kw two")
	qaFailed.Stage = pipeline.StageComplete
	qaFailed.QAPassed = &failed
	qaFailed.GeneratedContent = &content
	qaFailed.QAIssueCount = 2
	qaFailed.UpdatedAt = now

	pending := newPage("page-3", "proj-1", "kw three")

	require.NoError(t, s.CreatePages(ctx, []pipeline.PageRecord{eligible, qaFailed, pending}))

	n, err := s.BulkApprove(ctx, "proj-1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = s.BulkApprove(ctx, "proj-1")
	require.NoError(t, err)
	require.Zero(t, n)

	got, err := s.Get(ctx, "page-1")
	require.NoError(t, err)
	require.True(t, got.IsApproved)

	got, err = s.Get(ctx, "page-2")
	require.NoError(t, err)
	require.False(t, got.IsApproved)

	_, err = s.BulkApprove(ctx, "nope")
	require.ErrorIs(t, err, store.ErrProjectNotFound)
}
