// Package postgres provides the Postgres-backed PageStore.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/store"
)

// Config controls the Postgres connection pool used for page rows.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// PageStore persists page records in Postgres.
type PageStore struct {
	pool dbPool
}

// NewPageStore creates a Postgres-backed PageStore using the provided config.
func NewPageStore(ctx context.Context, cfg Config) (*PageStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PageStore{pool: pool}, nil
}

// NewPageStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPageStoreWithPool(pool dbPool) (*PageStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PageStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *PageStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const pageColumns = `page_id, project_id, keyword, url, title, stage, brief,
	generated_content, draft_uri, qa_passed, qa_issue_count, is_approved, error_text, updated_at`

// CreatePages inserts new pages. Insertion fails if any page already exists.
func (s *PageStore) CreatePages(ctx context.Context, pages []pipeline.PageRecord) error {
	query := `
		INSERT INTO pages (` + pageColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);
	`
	for _, page := range pages {
		args, err := pageArgs(page)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert page %s: %w", page.PageID, err)
		}
	}
	return nil
}

// Get fetches a page by ID.
func (s *PageStore) Get(ctx context.Context, pageID string) (pipeline.PageRecord, error) {
	query := `
		SELECT ` + pageColumns + `
		FROM pages
		WHERE page_id = $1;
	`
	page, err := scanPage(s.pool.QueryRow(ctx, query, pageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pipeline.PageRecord{}, store.ErrNotFound
		}
		return pipeline.PageRecord{}, fmt.Errorf("get page %s: %w", pageID, err)
	}
	return page, nil
}

// Upsert writes the full current state of a page.
func (s *PageStore) Upsert(ctx context.Context, page pipeline.PageRecord) error {
	query := `
		INSERT INTO pages (` + pageColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (page_id) DO UPDATE SET
			keyword = EXCLUDED.keyword,
			url = EXCLUDED.url,
			title = EXCLUDED.title,
			stage = EXCLUDED.stage,
			brief = EXCLUDED.brief,
			generated_content = EXCLUDED.generated_content,
			draft_uri = EXCLUDED.draft_uri,
			qa_passed = EXCLUDED.qa_passed,
			qa_issue_count = EXCLUDED.qa_issue_count,
			is_approved = EXCLUDED.is_approved,
			error_text = EXCLUDED.error_text,
			updated_at = EXCLUDED.updated_at;
	`
	args, err := pageArgs(page)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert page %s: %w", page.PageID, err)
	}
	return nil
}

// ListByProject returns every page for a project in creation order.
func (s *PageStore) ListByProject(ctx context.Context, projectID string) ([]pipeline.PageRecord, error) {
	query := `
		SELECT ` + pageColumns + `
		FROM pages
		WHERE project_id = $1
		ORDER BY page_id;
	`
	rows, err := s.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list pages for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var pages []pipeline.PageRecord
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pages for project %s: %w", projectID, err)
	}
	if len(pages) == 0 {
		return nil, store.ErrProjectNotFound
	}
	return pages, nil
}

// BulkApprove flips every eligible unapproved page to approved in one statement.
func (s *PageStore) BulkApprove(ctx context.Context, projectID string) (int, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pages WHERE project_id = $1);`, projectID,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check project %s: %w", projectID, err)
	}
	if !exists {
		return 0, store.ErrProjectNotFound
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE pages
		SET is_approved = TRUE
		WHERE project_id = $1
		  AND stage = $2
		  AND qa_passed = TRUE
		  AND is_approved = FALSE;
	`, projectID, pipeline.StageComplete)
	if err != nil {
		return 0, fmt.Errorf("bulk approve project %s: %w", projectID, err)
	}
	return int(tag.RowsAffected()), nil
}

func pageArgs(page pipeline.PageRecord) ([]any, error) {
	if page.PageID == "" {
		return nil, fmt.Errorf("page id is required")
	}
	var briefJSON []byte
	if page.Brief != nil {
		data, err := json.Marshal(page.Brief)
		if err != nil {
			return nil, fmt.Errorf("marshal brief for page %s: %w", page.PageID, err)
		}
		briefJSON = data
	}
	return []any{
		page.PageID,
		page.ProjectID,
		page.Keyword,
		page.URL,
		page.Title,
		page.Stage,
		briefJSON,
		page.GeneratedContent,
		page.DraftURI,
		page.QAPassed,
		page.QAIssueCount,
		page.IsApproved,
		page.Error,
		page.UpdatedAt,
	}, nil
}

func scanPage(row pgx.Row) (pipeline.PageRecord, error) {
	var (
		page      pipeline.PageRecord
		briefJSON []byte
	)
	err := row.Scan(
		&page.PageID,
		&page.ProjectID,
		&page.Keyword,
		&page.URL,
		&page.Title,
		&page.Stage,
		&briefJSON,
		&page.GeneratedContent,
		&page.DraftURI,
		&page.QAPassed,
		&page.QAIssueCount,
		&page.IsApproved,
		&page.Error,
		&page.UpdatedAt,
	)
	if err != nil {
		return pipeline.PageRecord{}, err
	}
	if len(briefJSON) > 0 {
		var brief pipeline.Brief
		if err := json.Unmarshal(briefJSON, &brief); err != nil {
			return pipeline.PageRecord{}, fmt.Errorf("unmarshal brief for page %s: %w", page.PageID, err)
		}
		page.Brief = &brief
	}
	return page, nil
}
