// Package status derives project-level progress snapshots from page state.
package status

import (
	"context"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/store"
)

// State is the aggregate generation state of a project.
type State string

// Aggregate states reported to pollers.
const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

// PageStatus is the per-page slice of a snapshot.
type PageStatus struct {
	PageID       string         `json:"page_id"`
	Keyword      string         `json:"keyword"`
	Stage        pipeline.Stage `json:"stage"`
	QAPassed     *bool          `json:"qa_passed,omitempty"`
	QAIssueCount int            `json:"qa_issue_count"`
	IsApproved   bool           `json:"is_approved"`
	Error        string         `json:"error,omitempty"`
}

// Snapshot is a point-in-time view of a project's generation progress.
type Snapshot struct {
	ProjectID       string       `json:"project_id"`
	State           State        `json:"state"`
	PagesTotal      int          `json:"pages_total"`
	PagesCompleted  int          `json:"pages_completed"`
	PagesFailed     int          `json:"pages_failed"`
	PagesApproved   int          `json:"pages_approved"`
	ProgressPercent int          `json:"progress_percent"`
	Pages           []PageStatus `json:"pages"`
}

// Reporter builds snapshots from the page store.
type Reporter struct {
	store store.PageStore
}

// NewReporter constructs a Reporter.
func NewReporter(pages store.PageStore) *Reporter {
	return &Reporter{store: pages}
}

// Snapshot aggregates the project's pages into one status view. It returns
// store.ErrProjectNotFound for unknown projects.
func (r *Reporter) Snapshot(ctx context.Context, projectID string) (Snapshot, error) {
	pages, err := r.store.ListByProject(ctx, projectID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		ProjectID:  projectID,
		PagesTotal: len(pages),
		Pages:      make([]PageStatus, 0, len(pages)),
	}

	var pending, terminal int
	for _, page := range pages {
		switch {
		case page.Stage == pipeline.StageComplete:
			snap.PagesCompleted++
			terminal++
		case page.Stage == pipeline.StageFailed:
			snap.PagesFailed++
			terminal++
		case page.Stage == pipeline.StagePending:
			pending++
		}
		if page.IsApproved {
			snap.PagesApproved++
		}
		snap.Pages = append(snap.Pages, PageStatus{
			PageID:       page.PageID,
			Keyword:      page.Keyword,
			Stage:        page.Stage,
			QAPassed:     page.QAPassed,
			QAIssueCount: page.QAIssueCount,
			IsApproved:   page.IsApproved,
			Error:        page.Error,
		})
	}

	snap.State = deriveState(len(pages), pending, terminal, snap.PagesFailed)
	snap.ProgressPercent = terminal * 100 / len(pages)
	return snap, nil
}

// deriveState maps page counts to the aggregate state. Any in-flight page
// means generating; a mix of pending and terminal pages is a batch mid-run,
// which also reads as generating.
func deriveState(total, pending, terminal, failed int) State {
	switch {
	case pending == total:
		return StateIdle
	case terminal < total:
		return StateGenerating
	case failed > 0:
		return StateFailed
	default:
		return StateComplete
	}
}
