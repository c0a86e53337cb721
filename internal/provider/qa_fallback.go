package provider

import (
	"context"
	"strings"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
)

// LegacyQAScorer is the in-process scoring fallback used while the QA
// provider's circuit is open. It applies the original rule set: every
// required term must appear in the content, and the draft must reach at
// least minLengthRatio of the brief's target word count.
type LegacyQAScorer struct{}

const minLengthRatio = 0.7

// Score checks the content against the brief. Each missing required term
// counts as one issue; falling short of the length floor counts as one more.
func (LegacyQAScorer) Score(
	_ context.Context,
	content string,
	brief pipeline.Brief,
) (pipeline.QAResult, error) {
	lower := strings.ToLower(content)
	issues := 0
	for _, term := range brief.RequiredTerms {
		if term == "" {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(term)) {
			issues++
		}
	}

	if brief.WordCount > 0 {
		words := len(strings.Fields(content))
		if float64(words) < float64(brief.WordCount)*minLengthRatio {
			issues++
		}
	}

	return pipeline.QAResult{Passed: issues == 0, IssueCount: issues}, nil
}
