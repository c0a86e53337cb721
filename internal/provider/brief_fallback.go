package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
)

// HeuristicBriefProvider is the legacy brief generator used as the circuit
// breaker fallback. It derives a serviceable outline from the keyword alone,
// so it never fails and never leaves the process.
type HeuristicBriefProvider struct {
	// DefaultWordCount seeds the target length; the per-term bonus is added
	// on top. Zero means the stock default.
	DefaultWordCount int
}

const (
	heuristicBaseWordCount    = 800
	heuristicPerTermWordCount = 50
)

// FetchBrief builds a deterministic brief from the keyword.
func (p *HeuristicBriefProvider) FetchBrief(
	_ context.Context,
	keyword string,
	page pipeline.PageContext,
) (pipeline.Brief, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return pipeline.Brief{}, fmt.Errorf("legacy brief: keyword is required")
	}

	base := p.DefaultWordCount
	if base <= 0 {
		base = heuristicBaseWordCount
	}
	terms := strings.Fields(strings.ToLower(keyword))

	headings := []string{
		fmt.Sprintf("What Is %s?", titleCase(keyword)),
		fmt.Sprintf("Benefits of %s", titleCase(keyword)),
		fmt.Sprintf("How to Choose %s", titleCase(keyword)),
		fmt.Sprintf("%s: Frequently Asked Questions", titleCase(keyword)),
	}
	summary := fmt.Sprintf("Informational page targeting %q", keyword)
	if page.Title != "" {
		summary = fmt.Sprintf("%s for %q", summary, page.Title)
	}

	return pipeline.Brief{
		Keyword:       keyword,
		WordCount:     base + heuristicPerTermWordCount*len(terms),
		RequiredTerms: terms,
		Headings:      headings,
		Summary:       summary,
		Source:        "fallback",
	}, nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
