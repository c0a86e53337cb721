package provider

import (
	"context"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/breaker"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
)

// ResilientBriefProvider routes brief fetches through a circuit breaker,
// falling back to the legacy heuristic while the primary is tripped.
type ResilientBriefProvider struct {
	primary  pipeline.BriefProvider
	fallback pipeline.BriefProvider
	br       *breaker.Breaker[pipeline.Brief]
}

// NewResilientBriefProvider wires the primary and fallback behind a breaker.
func NewResilientBriefProvider(
	primary, fallback pipeline.BriefProvider,
	br *breaker.Breaker[pipeline.Brief],
) *ResilientBriefProvider {
	return &ResilientBriefProvider{primary: primary, fallback: fallback, br: br}
}

// FetchBrief implements pipeline.BriefProvider.
func (p *ResilientBriefProvider) FetchBrief(
	ctx context.Context,
	keyword string,
	page pipeline.PageContext,
) (pipeline.Brief, error) {
	return p.br.Do(ctx,
		func(ctx context.Context) (pipeline.Brief, error) {
			return p.primary.FetchBrief(ctx, keyword, page)
		},
		func(ctx context.Context) (pipeline.Brief, error) {
			return p.fallback.FetchBrief(ctx, keyword, page)
		},
	)
}

// ResilientQAProvider routes scoring through a circuit breaker, falling back
// to the legacy scorer while the primary is tripped.
type ResilientQAProvider struct {
	primary  pipeline.QAProvider
	fallback pipeline.QAProvider
	br       *breaker.Breaker[pipeline.QAResult]
}

// NewResilientQAProvider wires the primary and fallback behind a breaker.
func NewResilientQAProvider(
	primary, fallback pipeline.QAProvider,
	br *breaker.Breaker[pipeline.QAResult],
) *ResilientQAProvider {
	return &ResilientQAProvider{primary: primary, fallback: fallback, br: br}
}

// Score implements pipeline.QAProvider.
func (p *ResilientQAProvider) Score(
	ctx context.Context,
	content string,
	brief pipeline.Brief,
) (pipeline.QAResult, error) {
	return p.br.Do(ctx,
		func(ctx context.Context) (pipeline.QAResult, error) {
			return p.primary.Score(ctx, content, brief)
		},
		func(ctx context.Context) (pipeline.QAResult, error) {
			return p.fallback.Score(ctx, content, brief)
		},
	)
}
