// Package memory provides an in-memory PageStore for development and testing.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/store"
)

// PageStore keeps page records in process memory.
type PageStore struct {
	mu       sync.RWMutex
	pages    map[string]pipeline.PageRecord
	projects map[string][]string
}

// NewPageStore constructs a PageStore.
func NewPageStore() *PageStore {
	return &PageStore{
		pages:    make(map[string]pipeline.PageRecord),
		projects: make(map[string][]string),
	}
}

// CreatePages registers new pages, preserving insertion order per project.
func (s *PageStore) CreatePages(_ context.Context, pages []pipeline.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, page := range pages {
		if _, exists := s.pages[page.PageID]; exists {
			return fmt.Errorf("page %s already exists", page.PageID)
		}
	}
	for _, page := range pages {
		s.pages[page.PageID] = clonePage(page)
		s.projects[page.ProjectID] = append(s.projects[page.ProjectID], page.PageID)
	}
	return nil
}

// Get fetches a page by ID.
func (s *PageStore) Get(_ context.Context, pageID string) (pipeline.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[pageID]
	if !ok {
		return pipeline.PageRecord{}, store.ErrNotFound
	}
	return clonePage(page), nil
}

// Upsert writes the full state of a page.
func (s *PageStore) Upsert(_ context.Context, page pipeline.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pages[page.PageID]; !exists {
		s.projects[page.ProjectID] = append(s.projects[page.ProjectID], page.PageID)
	}
	s.pages[page.PageID] = clonePage(page)
	return nil
}

// ListByProject returns every page for a project in insertion order.
func (s *PageStore) ListByProject(_ context.Context, projectID string) ([]pipeline.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.projects[projectID]
	if !ok || len(ids) == 0 {
		return nil, store.ErrProjectNotFound
	}
	out := make([]pipeline.PageRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, clonePage(s.pages[id]))
	}
	return out, nil
}

// BulkApprove flips every eligible unapproved page to approved.
func (s *PageStore) BulkApprove(_ context.Context, projectID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, ok := s.projects[projectID]
	if !ok || len(ids) == 0 {
		return 0, store.ErrProjectNotFound
	}
	approved := 0
	for _, id := range ids {
		page := s.pages[id]
		if page.IsApproved || !page.ApprovalEligible() {
			continue
		}
		page.IsApproved = true
		s.pages[id] = page
		approved++
	}
	return approved, nil
}

// clonePage deep-copies the record so callers cannot mutate stored state
// through shared pointers or slices.
func clonePage(page pipeline.PageRecord) pipeline.PageRecord {
	out := page
	if page.Brief != nil {
		brief := *page.Brief
		brief.RequiredTerms = append([]string(nil), page.Brief.RequiredTerms...)
		brief.Headings = append([]string(nil), page.Brief.Headings...)
		out.Brief = &brief
	}
	if page.GeneratedContent != nil {
		content := *page.GeneratedContent
		out.GeneratedContent = &content
	}
	if page.QAPassed != nil {
		passed := *page.QAPassed
		out.QAPassed = &passed
	}
	return out
}
