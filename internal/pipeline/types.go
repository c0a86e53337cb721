package pipeline

import (
	"fmt"
	"time"
)

// Brief is the structured content outline used to steer generation.
type Brief struct {
	Keyword       string   `json:"keyword"`
	WordCount     int      `json:"word_count"`
	RequiredTerms []string `json:"required_terms"`
	Headings      []string `json:"headings"`
	Summary       string   `json:"summary,omitempty"`
	// Source records which provider produced the brief ("primary" or
	// "fallback"); useful when comparing shadow-mode output.
	Source string `json:"source,omitempty"`
}

// QAResult is the verdict returned by the quality-check provider. A returned
// verdict of Passed=false is still a successful QA call.
type QAResult struct {
	Passed     bool `json:"passed"`
	IssueCount int  `json:"issue_count"`
}

// PageContext carries the page metadata handed to providers alongside the
// keyword.
type PageContext struct {
	ProjectID string `json:"project_id"`
	PageID    string `json:"page_id"`
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
}

// PageRecord is the durable per-page state mutated exclusively by the
// orchestrator. One record exists per (project, page).
type PageRecord struct {
	PageID    string `json:"page_id"`
	ProjectID string `json:"project_id"`
	Keyword   string `json:"keyword"`
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`

	Stage            Stage   `json:"stage"`
	Brief            *Brief  `json:"brief,omitempty"`
	GeneratedContent *string `json:"generated_content,omitempty"`
	DraftURI         string  `json:"draft_uri,omitempty"`

	// QAPassed is tri-state: nil until a QA verdict has been recorded.
	QAPassed     *bool `json:"qa_passed,omitempty"`
	QAIssueCount int   `json:"qa_issue_count"`

	IsApproved bool      `json:"is_approved"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewPageRecord creates a record in the pending stage, as happens when a
// keyword is approved upstream.
func NewPageRecord(projectID, pageID, keyword string, now time.Time) PageRecord {
	return PageRecord{
		PageID:    pageID,
		ProjectID: projectID,
		Keyword:   keyword,
		Stage:     StagePending,
		UpdatedAt: now,
	}
}

// Advance moves the record to the next stage, enforcing the transition table.
func (r *PageRecord) Advance(next Stage, now time.Time) error {
	stage, err := r.Stage.Transition(next)
	if err != nil {
		return err
	}
	r.Stage = stage
	if next != StageFailed {
		r.Error = ""
	}
	r.UpdatedAt = now
	return nil
}

// MarkFailed records the attempt error verbatim and parks the record in the
// failed resting state.
func (r *PageRecord) MarkFailed(errText string, now time.Time) {
	r.Stage = StageFailed
	r.Error = errText
	r.UpdatedAt = now
}

// ResetForRetry returns a failed or interrupted record to pending. The cached
// brief survives unless refreshBrief is set, so a retry does not repeat the
// brief fetch it already paid for.
func (r *PageRecord) ResetForRetry(refreshBrief bool, now time.Time) {
	r.Stage = StagePending
	r.Error = ""
	if refreshBrief {
		r.Brief = nil
	}
	r.UpdatedAt = now
}

// ResetForRegenerate performs the full regenerate reset: content, QA outcome,
// approval and error are cleared; the brief is cleared only on request.
func (r *PageRecord) ResetForRegenerate(refreshBrief bool, now time.Time) {
	r.Stage = StagePending
	r.GeneratedContent = nil
	r.DraftURI = ""
	r.QAPassed = nil
	r.QAIssueCount = 0
	r.IsApproved = false
	r.Error = ""
	if refreshBrief {
		r.Brief = nil
	}
	r.UpdatedAt = now
}

// Eligible reports whether the orchestrator may dispatch the page in a batch.
// Pending and failed pages are eligible; complete pages are skipped; pages in
// a transient stage belong to an attempt already in flight.
func (r PageRecord) Eligible() bool {
	return r.Stage == StagePending || r.Stage == StageFailed
}

// ApprovalEligible reports whether the record satisfies the approval
// invariant: generation complete and QA affirmatively passed.
func (r PageRecord) ApprovalEligible() bool {
	return r.Stage == StageComplete && r.QAPassed != nil && *r.QAPassed
}

// Validate checks the record invariants after a mutation.
func (r PageRecord) Validate() error {
	if r.PageID == "" || r.ProjectID == "" {
		return fmt.Errorf("page record requires page_id and project_id")
	}
	if !r.Stage.Valid() {
		return fmt.Errorf("unknown stage %q", r.Stage)
	}
	if r.Stage == StageComplete && (r.GeneratedContent == nil || r.QAPassed == nil) {
		return fmt.Errorf("complete page %s missing content or qa verdict", r.PageID)
	}
	if r.IsApproved && !r.ApprovalEligible() {
		return fmt.Errorf("page %s approved without complete stage and passing qa", r.PageID)
	}
	if r.Error != "" && r.Stage != StageFailed {
		return fmt.Errorf("page %s carries error text outside failed stage", r.PageID)
	}
	if r.QAIssueCount < 0 {
		return fmt.Errorf("page %s has negative qa issue count", r.PageID)
	}
	return nil
}
