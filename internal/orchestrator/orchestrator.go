// Package orchestrator runs the per-page content pipeline with bounded concurrency.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/events"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/metrics"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/store"
)

// ErrAlreadyRunning is returned when a batch for the project is in flight.
var ErrAlreadyRunning = errors.New("generation already running for project")

// Config controls Orchestrator behavior.
type Config struct {
	// Concurrency bounds the number of pages processed at once.
	Concurrency int
	// StepTimeout caps each provider call.
	StepTimeout time.Duration
	// Topic is the completion event topic; empty disables publishing.
	Topic string
	// DraftPrefix is the blob path prefix for archived drafts.
	DraftPrefix string
	// Events receives pipeline progress events; nil disables emission.
	Events events.Emitter
	// Hasher fingerprints generated drafts; nil disables hashing.
	Hasher pipeline.Hasher
}

// Orchestrator drives every page of a project through the content pipeline.
// It is the only writer of page state.
type Orchestrator struct {
	store     store.PageStore
	briefs    pipeline.BriefProvider
	generator pipeline.GenerationProvider
	qa        pipeline.QAProvider
	blobs     pipeline.BlobStore
	publisher pipeline.Publisher
	clock     pipeline.Clock
	cfg       Config
	logger    *zap.Logger

	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// New constructs an Orchestrator. The blob store and publisher are optional;
// when nil, draft archiving and event publishing are skipped.
func New(
	pages store.PageStore,
	briefs pipeline.BriefProvider,
	generator pipeline.GenerationProvider,
	qa pipeline.QAProvider,
	blobs pipeline.BlobStore,
	publisher pipeline.Publisher,
	clock pipeline.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		store:     pages,
		briefs:    briefs,
		generator: generator,
		qa:        qa,
		blobs:     blobs,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		running:   make(map[string]struct{}),
	}
}

// Start launches a generation batch over every eligible page of the project.
// Pages already complete are skipped; failed pages are retried with their
// cached brief. It returns once the batch is admitted; processing continues
// in the background.
func (o *Orchestrator) Start(ctx context.Context, projectID string) error {
	pages, err := o.store.ListByProject(ctx, projectID)
	if err != nil {
		return err
	}

	if !o.acquire(projectID) {
		return ErrAlreadyRunning
	}

	eligible := make([]pipeline.PageRecord, 0, len(pages))
	for _, page := range pages {
		// Transient stages can only be leftovers from an interrupted
		// run here, since a live batch holds the running flag. They
		// resume from pending with whatever brief was committed.
		if page.Stage != pipeline.StageComplete {
			eligible = append(eligible, page)
		}
	}

	metrics.ObserveBatch("generate")
	o.launch(ctx, projectID, eligible)
	return nil
}

// Regenerate resets every page of the project and launches a fresh batch.
// Cached briefs are kept unless refreshBriefs is set.
func (o *Orchestrator) Regenerate(ctx context.Context, projectID string, refreshBriefs bool) error {
	pages, err := o.store.ListByProject(ctx, projectID)
	if err != nil {
		return err
	}

	if !o.acquire(projectID) {
		return ErrAlreadyRunning
	}

	now := o.clock.Now()
	for i := range pages {
		pages[i].ResetForRegenerate(refreshBriefs, now)
		if err := o.store.Upsert(ctx, pages[i]); err != nil {
			o.release(projectID)
			return fmt.Errorf("reset page %s: %w", pages[i].PageID, err)
		}
	}

	metrics.ObserveBatch("regenerate")
	o.launch(ctx, projectID, pages)
	return nil
}

// Wait blocks until all in-flight batches finish. Used during shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) acquire(projectID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.running[projectID]; busy {
		return false
	}
	o.running[projectID] = struct{}{}
	return true
}

func (o *Orchestrator) release(projectID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, projectID)
}

// launch fans the batch out over a bounded worker group. The batch outlives
// the triggering request, so it detaches from the caller's cancellation.
func (o *Orchestrator) launch(ctx context.Context, projectID string, pages []pipeline.PageRecord) {
	batchCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release(projectID)

		started := o.clock.Now()
		o.emit(events.Event{
			ProjectID: projectID,
			TS:        started,
			Kind:      events.KindBatchStart,
			Pages:     len(pages),
		})

		var g errgroup.Group
		g.SetLimit(o.cfg.Concurrency)
		for _, page := range pages {
			g.Go(func() error {
				o.processPage(batchCtx, page)
				return nil
			})
		}
		_ = g.Wait()

		elapsed := o.clock.Now().Sub(started)
		o.emit(events.Event{
			ProjectID: projectID,
			TS:        o.clock.Now(),
			Kind:      events.KindBatchDone,
			Pages:     len(pages),
			Dur:       elapsed,
		})
		o.logger.Info("batch finished",
			zap.String("project_id", projectID),
			zap.Int("pages", len(pages)),
			zap.Duration("elapsed", elapsed),
		)
	}()
}

// processPage runs one page through brief, generation and QA, committing the
// stage after every transition. A page failure never aborts the batch.
func (o *Orchestrator) processPage(ctx context.Context, page pipeline.PageRecord) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	started := o.clock.Now()

	// Failed and interrupted pages restart from pending, keeping the
	// cached brief so the retry does not repeat a fetch it already paid for.
	if page.Stage != pipeline.StagePending {
		page.ResetForRetry(false, o.clock.Now())
		if !o.commit(ctx, &page) {
			return
		}
	}

	if !o.advance(ctx, &page, pipeline.StageGeneratingBrief) {
		return
	}
	if page.Brief == nil {
		brief, err := o.fetchBrief(ctx, page)
		if err != nil {
			o.fail(ctx, &page, err, started)
			return
		}
		page.Brief = &brief
		if !o.commit(ctx, &page) {
			return
		}
	} else {
		o.logger.Debug("reusing cached brief",
			zap.String("page_id", page.PageID),
			zap.String("keyword", page.Keyword),
		)
	}

	if !o.advance(ctx, &page, pipeline.StageWriting) {
		return
	}
	content, err := o.generate(ctx, page)
	if err != nil {
		o.fail(ctx, &page, err, started)
		return
	}
	page.GeneratedContent = &content
	contentHash := o.hashDraft(content)
	o.archiveDraft(ctx, &page)
	if !o.commit(ctx, &page) {
		return
	}

	if !o.advance(ctx, &page, pipeline.StageChecking) {
		return
	}
	result, err := o.score(ctx, page)
	if err != nil {
		o.fail(ctx, &page, err, started)
		return
	}
	page.QAPassed = &result.Passed
	page.QAIssueCount = result.IssueCount

	if !o.advance(ctx, &page, pipeline.StageComplete) {
		return
	}

	elapsed := o.clock.Now().Sub(started)
	o.publishCompletion(ctx, page, contentHash)
	metrics.ObservePage("complete", elapsed)
	o.emit(events.Event{
		ProjectID: page.ProjectID,
		PageID:    page.PageID,
		TS:        o.clock.Now(),
		Kind:      events.KindPageDone,
		Dur:       elapsed,
	})
	o.logger.Info("page complete",
		zap.String("project_id", page.ProjectID),
		zap.String("page_id", page.PageID),
		zap.Bool("qa_passed", result.Passed),
		zap.Int("qa_issues", result.IssueCount),
		zap.String("content_hash", contentHash),
	)
}

// hashDraft fingerprints the generated draft so downstream consumers can
// detect content changes across regenerations.
func (o *Orchestrator) hashDraft(content string) string {
	if o.cfg.Hasher == nil {
		return ""
	}
	digest, err := o.cfg.Hasher.Hash([]byte(content))
	if err != nil {
		o.logger.Warn("draft hash failed", zap.Error(err))
		return ""
	}
	return digest
}

func (o *Orchestrator) fetchBrief(ctx context.Context, page pipeline.PageRecord) (pipeline.Brief, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	defer cancel()

	brief, err := o.briefs.FetchBrief(stepCtx, page.Keyword, pageContext(page))
	if err != nil {
		metrics.ObserveProviderCall("brief", "error")
		return pipeline.Brief{}, fmt.Errorf("fetch brief: %w", err)
	}
	metrics.ObserveProviderCall("brief", briefOutcome(brief))
	return brief, nil
}

func (o *Orchestrator) generate(ctx context.Context, page pipeline.PageRecord) (string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	defer cancel()

	content, err := o.generator.Generate(stepCtx, *page.Brief, page.Keyword, pageContext(page))
	if err != nil {
		metrics.ObserveProviderCall("generation", "error")
		return "", fmt.Errorf("generate content: %w", err)
	}
	metrics.ObserveProviderCall("generation", "ok")
	return content, nil
}

func (o *Orchestrator) score(ctx context.Context, page pipeline.PageRecord) (pipeline.QAResult, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	defer cancel()

	result, err := o.qa.Score(stepCtx, *page.GeneratedContent, *page.Brief)
	if err != nil {
		metrics.ObserveProviderCall("qa", "error")
		return pipeline.QAResult{}, fmt.Errorf("qa check: %w", err)
	}
	metrics.ObserveProviderCall("qa", "ok")
	return result, nil
}

// archiveDraft uploads the generated draft for later review. Archiving is
// best-effort: the durable copy lives in the page store.
func (o *Orchestrator) archiveDraft(ctx context.Context, page *pipeline.PageRecord) {
	if o.blobs == nil || page.GeneratedContent == nil {
		return
	}
	uri, err := o.blobs.PutObject(
		ctx,
		o.buildDraftPath(page.ProjectID, page.PageID),
		"text/markdown; charset=utf-8",
		[]byte(*page.GeneratedContent),
	)
	if err != nil {
		o.logger.Warn("draft archive failed",
			zap.String("page_id", page.PageID),
			zap.Error(err),
		)
		return
	}
	page.DraftURI = uri
}

func (o *Orchestrator) buildDraftPath(projectID, pageID string) string {
	prefix := strings.Trim(o.cfg.DraftPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.md", projectID, pageID)
	}
	return fmt.Sprintf("%s/%s/%s.md", prefix, projectID, pageID)
}

func (o *Orchestrator) publishCompletion(ctx context.Context, page pipeline.PageRecord, contentHash string) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"project_id":  page.ProjectID,
		"page_id":     page.PageID,
		"keyword":     page.Keyword,
		"draft_uri":   page.DraftURI,
		"qa_passed":   page.QAPassed != nil && *page.QAPassed,
		"qa_issues":   page.QAIssueCount,
		"finished_at": o.clock.Now().Format(time.RFC3339),
	}
	if contentHash != "" {
		payload["content_hash"] = contentHash
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		o.logger.Warn("completion publish failed",
			zap.String("page_id", page.PageID),
			zap.Error(err),
		)
	}
}

// advance moves the page to the next stage and commits it, so a restart
// resumes from the last durable stage.
func (o *Orchestrator) advance(ctx context.Context, page *pipeline.PageRecord, next pipeline.Stage) bool {
	if err := page.Advance(next, o.clock.Now()); err != nil {
		o.logger.Error("illegal stage transition",
			zap.String("page_id", page.PageID),
			zap.String("from", string(page.Stage)),
			zap.String("to", string(next)),
			zap.Error(err),
		)
		return false
	}
	if !o.commit(ctx, page) {
		return false
	}
	o.emit(events.Event{
		ProjectID: page.ProjectID,
		PageID:    page.PageID,
		TS:        o.clock.Now(),
		Kind:      events.KindPageStage,
		Stage:     string(page.Stage),
	})
	return true
}

func (o *Orchestrator) commit(ctx context.Context, page *pipeline.PageRecord) bool {
	if err := o.store.Upsert(ctx, *page); err != nil {
		o.logger.Error("page state commit failed",
			zap.String("page_id", page.PageID),
			zap.String("stage", string(page.Stage)),
			zap.Error(err),
		)
		return false
	}
	return true
}

// fail parks the page in the failed stage, recording the step error verbatim
// for operator triage.
func (o *Orchestrator) fail(ctx context.Context, page *pipeline.PageRecord, cause error, started time.Time) {
	page.MarkFailed(cause.Error(), o.clock.Now())
	o.commit(ctx, page)
	elapsed := o.clock.Now().Sub(started)
	metrics.ObservePage("failed", elapsed)
	o.emit(events.Event{
		ProjectID: page.ProjectID,
		PageID:    page.PageID,
		TS:        o.clock.Now(),
		Kind:      events.KindPageError,
		Dur:       elapsed,
		Note:      cause.Error(),
	})
	o.logger.Error("page failed",
		zap.String("project_id", page.ProjectID),
		zap.String("page_id", page.PageID),
		zap.String("stage_error", cause.Error()),
	)
}

func (o *Orchestrator) emit(evt events.Event) {
	if o.cfg.Events == nil {
		return
	}
	o.cfg.Events.Emit(evt)
}

func pageContext(page pipeline.PageRecord) pipeline.PageContext {
	return pipeline.PageContext{
		ProjectID: page.ProjectID,
		PageID:    page.PageID,
		URL:       page.URL,
		Title:     page.Title,
	}
}

func briefOutcome(brief pipeline.Brief) string {
	if brief.Source == "fallback" {
		return "fallback"
	}
	return "ok"
}
