package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/store"
)

var pageCols = []string{
	"page_id", "project_id", "keyword", "url", "title", "stage", "brief",
	"generated_content", "draft_uri", "qa_passed", "qa_issue_count",
	"is_approved", "error_text", "updated_at",
}

func TestUpsertWritesFullRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPageStoreWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	page := pipeline.NewPageRecord("proj-1", "page-1", "standing desk", now)
	page.Brief = &pipeline.Brief{Keyword: "standing desk", WordCount: 900}

	mock.ExpectExec("INSERT INTO pages").
		WithArgs(
			"page-1",
			"proj-1",
			"standing desk",
			"",
			"",
			pipeline.StagePending,
			[]byte(`{"keyword":"standing desk","word_count":900,"required_terms":null,"headings":null}`),
			(*string)(nil),
			"",
			(*bool)(nil),
			0,
			false,
			"",
			now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Upsert(context.Background(), page))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMapsNoRowsToNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPageStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM pages").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(pageCols))

	_, err = s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByProjectRoundTripsBrief(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPageStoreWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	content := "draft body"
	passed := true

	rows := pgxmock.NewRows(pageCols).AddRow(
		"page-1", "proj-1", "standing desk", "https://example.com/desks", "Desks",
		pipeline.StageComplete,
		[]byte(`{"keyword":"standing desk","word_count":900,"required_terms":["ergonomic"],"headings":["Intro"]}`),
		&content, "gs://drafts/proj-1/page-1.md", &passed, 0, false, "", now,
	)

	mock.ExpectQuery("SELECT (.+) FROM pages").
		WithArgs("proj-1").
		WillReturnRows(rows)

	pages, err := s.ListByProject(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, pipeline.StageComplete, pages[0].Stage)
	require.NotNil(t, pages[0].Brief)
	require.Equal(t, 900, pages[0].Brief.WordCount)
	require.Equal(t, []string{"ergonomic"}, pages[0].Brief.RequiredTerms)
	require.NotNil(t, pages[0].QAPassed)
	require.True(t, *pages[0].QAPassed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByProjectEmptyIsProjectNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPageStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM pages").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows(pageCols))

	_, err = s.ListByProject(context.Background(), "nope")
	require.ErrorIs(t, err, store.ErrProjectNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkApproveCountsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPageStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("proj-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("UPDATE pages").
		WithArgs("proj-1", pipeline.StageComplete).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := s.BulkApprove(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkApproveUnknownProject(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPageStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = s.BulkApprove(context.Background(), "nope")
	require.ErrorIs(t, err, store.ErrProjectNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
