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

// QAConfig configures the SERP-scoring QA service client.
type QAConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPQAProvider calls the quality-check service over HTTP.
type HTTPQAProvider struct {
	cfg    QAConfig
	client *http.Client
}

// NewHTTPQAProvider builds the primary QA adapter.
func NewHTTPQAProvider(cfg QAConfig) *HTTPQAProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPQAProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type scoreRequest struct {
	Content string         `json:"content"`
	Brief   pipeline.Brief `json:"brief"`
}

type scoreResponse struct {
	Passed     *bool `json:"passed"`
	IssueCount int   `json:"issue_count"`
}

// Score submits generated content for automated quality checks. A verdict of
// passed=false is a successful call; only transport/schema problems error.
func (p *HTTPQAProvider) Score(
	ctx context.Context,
	content string,
	brief pipeline.Brief,
) (pipeline.QAResult, error) {
	body, err := json.Marshal(scoreRequest{Content: content, Brief: brief})
	if err != nil {
		return pipeline.QAResult{}, fmt.Errorf("marshal score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/score", bytes.NewReader(body))
	if err != nil {
		return pipeline.QAResult{}, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return pipeline.QAResult{}, fmt.Errorf("qa provider: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pipeline.QAResult{}, fmt.Errorf("qa provider: unexpected status %d", resp.StatusCode)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return pipeline.QAResult{}, fmt.Errorf("qa provider: decode response: %w", err)
	}
	if out.Passed == nil {
		return pipeline.QAResult{}, fmt.Errorf("qa provider: response missing verdict")
	}
	if out.IssueCount < 0 {
		return pipeline.QAResult{}, fmt.Errorf("qa provider: negative issue count %d", out.IssueCount)
	}
	return pipeline.QAResult{Passed: *out.Passed, IssueCount: out.IssueCount}, nil
}
