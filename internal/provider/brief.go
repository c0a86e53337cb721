package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
)

// BriefConfig configures the primary brief service client.
type BriefConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPBriefProvider calls the content-brief service over HTTP.
type HTTPBriefProvider struct {
	cfg    BriefConfig
	client *http.Client
}

// NewHTTPBriefProvider builds the primary brief adapter.
func NewHTTPBriefProvider(cfg BriefConfig) *HTTPBriefProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPBriefProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type briefRequest struct {
	Keyword   string `json:"keyword"`
	ProjectID string `json:"project_id"`
	PageID    string `json:"page_id"`
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
}

// FetchBrief requests a structured brief for the keyword. Any transport
// error, non-2xx status, or undecodable body is surfaced as a provider error.
func (p *HTTPBriefProvider) FetchBrief(
	ctx context.Context,
	keyword string,
	page pipeline.PageContext,
) (pipeline.Brief, error) {
	body, err := json.Marshal(briefRequest{
		Keyword:   keyword,
		ProjectID: page.ProjectID,
		PageID:    page.PageID,
		URL:       page.URL,
		Title:     page.Title,
	})
	if err != nil {
		return pipeline.Brief{}, fmt.Errorf("marshal brief request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/briefs", bytes.NewReader(body))
	if err != nil {
		return pipeline.Brief{}, fmt.Errorf("build brief request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return pipeline.Brief{}, fmt.Errorf("brief provider: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pipeline.Brief{}, fmt.Errorf("brief provider: unexpected status %d", resp.StatusCode)
	}

	var brief pipeline.Brief
	if err := json.NewDecoder(resp.Body).Decode(&brief); err != nil {
		return pipeline.Brief{}, fmt.Errorf("brief provider: decode response: %w", err)
	}
	if brief.WordCount <= 0 {
		return pipeline.Brief{}, fmt.Errorf("brief provider: malformed brief for %q", keyword)
	}
	brief.Keyword = keyword
	brief.Source = "primary"
	return brief, nil
}
