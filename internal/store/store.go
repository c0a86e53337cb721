// Package store defines the durable repository for per-page pipeline state.
package store

import (
	"context"
	"errors"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
)

// ErrNotFound is returned when a page does not exist.
var ErrNotFound = errors.New("page not found")

// ErrProjectNotFound is returned when a project has no pages at all.
var ErrProjectNotFound = errors.New("project not found")

// PageStore persists page records. The pipeline commits a record after every
// stage transition so that a restart resumes from the last durable stage.
type PageStore interface {
	// CreatePages registers new pages in the pending stage.
	CreatePages(ctx context.Context, pages []pipeline.PageRecord) error

	// Get fetches a single page by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, pageID string) (pipeline.PageRecord, error)

	// Upsert writes the full current state of a page.
	Upsert(ctx context.Context, page pipeline.PageRecord) error

	// ListByProject returns every page belonging to a project. Returns
	// ErrProjectNotFound when the project has no pages.
	ListByProject(ctx context.Context, projectID string) ([]pipeline.PageRecord, error)

	// BulkApprove marks every eligible, not-yet-approved page in the
	// project as approved and reports how many pages it flipped. Calling
	// it again is a no-op returning zero.
	BulkApprove(ctx context.Context, projectID string) (int, error)
}
