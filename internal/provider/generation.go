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

// GenerationConfig configures the LLM generation service client.
type GenerationConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// HTTPGenerationProvider calls the content generation (LLM) service. It has
// no fallback: a generation failure is terminal for the page attempt.
type HTTPGenerationProvider struct {
	cfg    GenerationConfig
	client *http.Client
}

// NewHTTPGenerationProvider builds the generation adapter.
func NewHTTPGenerationProvider(cfg GenerationConfig) *HTTPGenerationProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &HTTPGenerationProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Keyword string               `json:"keyword"`
	Brief   pipeline.Brief       `json:"brief"`
	Page    pipeline.PageContext `json:"page"`
	Model   string               `json:"model,omitempty"`
}

type generateResponse struct {
	Content string `json:"content"`
}

// Generate produces draft content steered by the brief.
func (p *HTTPGenerationProvider) Generate(
	ctx context.Context,
	brief pipeline.Brief,
	keyword string,
	page pipeline.PageContext,
) (string, error) {
	body, err := json.Marshal(generateRequest{
		Keyword: keyword,
		Brief:   brief,
		Page:    page,
		Model:   p.cfg.Model,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation provider: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("generation provider: unexpected status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("generation provider: decode response: %w", err)
	}
	if out.Content == "" {
		return "", fmt.Errorf("generation provider: empty content for %q", keyword)
	}
	return out.Content, nil
}
