// Package approval enforces the gate between generated content and publication.
package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/store"
)

// ErrNotEligible is returned when a page has not completed generation with a
// passing QA verdict.
var ErrNotEligible = errors.New("page is not eligible for approval")

// Gate approves pages for publication. Approval is the only mutation of page
// state performed outside a generation batch.
type Gate struct {
	store store.PageStore
}

// NewGate constructs a Gate.
func NewGate(pages store.PageStore) *Gate {
	return &Gate{store: pages}
}

// Approve marks one page approved. The page must be complete with a passing
// QA verdict; approving an already approved page is a no-op.
func (g *Gate) Approve(ctx context.Context, pageID string) error {
	page, err := g.store.Get(ctx, pageID)
	if err != nil {
		return err
	}
	if !page.ApprovalEligible() {
		return fmt.Errorf("%w: page %s in stage %s", ErrNotEligible, pageID, page.Stage)
	}
	if page.IsApproved {
		return nil
	}
	page.IsApproved = true
	if err := g.store.Upsert(ctx, page); err != nil {
		return fmt.Errorf("approve page %s: %w", pageID, err)
	}
	return nil
}

// BulkApprove approves every eligible page in the project and reports how
// many pages were newly approved. Ineligible pages are skipped, not failed;
// repeating the call approves nothing further.
func (g *Gate) BulkApprove(ctx context.Context, projectID string) (int, error) {
	return g.store.BulkApprove(ctx, projectID)
}
