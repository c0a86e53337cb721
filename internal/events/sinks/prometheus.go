package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/events"
)

// PrometheusSink exports batch-level pipeline metrics via Prometheus. It owns
// the collectors for batches started/running, batch runtime and per-stage
// transition counters.
type PrometheusSink struct {
	batchesStarted prometheus.Counter
	batchesRunning prometheus.Gauge
	batchRuntime   prometheus.Histogram
	batchPages     prometheus.Histogram

	stageTransitions *prometheus.CounterVec
	pageOutcomes     *prometheus.CounterVec

	tracker *batchTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		batchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contentgen_batches_started_total",
			Help: "Total generation batches that have started.",
		}),
		batchesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "contentgen_batches_running",
			Help: "Current number of running generation batches.",
		}),
		batchRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "contentgen_batch_runtime_seconds",
			Help:    "Wall time per completed batch.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		batchPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "contentgen_batch_pages",
			Help:    "Pages processed per batch.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),
		stageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contentgen_stage_transitions_total",
			Help: "Page stage transitions partitioned by target stage.",
		}, []string{"stage"}),
		pageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contentgen_page_events_total",
			Help: "Page completion events partitioned by result.",
		}, []string{"result"}),
		tracker: newBatchTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.batchesStarted,
		s.batchesRunning,
		s.batchRuntime,
		s.batchPages,
		s.stageTransitions,
		s.pageOutcomes,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register event collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt events.Event) {
	switch evt.Kind {
	case events.KindBatchStart:
		s.batchesStarted.Inc()
		if s.tracker.start(evt.ProjectID) {
			s.batchesRunning.Inc()
		}
	case events.KindBatchDone:
		if evt.Dur > 0 {
			s.batchRuntime.Observe(evt.Dur.Seconds())
		}
		if evt.Pages > 0 {
			s.batchPages.Observe(float64(evt.Pages))
		}
		if s.tracker.complete(evt.ProjectID) {
			s.batchesRunning.Dec()
		}
	case events.KindPageStage:
		s.stageTransitions.WithLabelValues(evt.Stage).Inc()
	case events.KindPageDone:
		s.pageOutcomes.WithLabelValues("complete").Inc()
	case events.KindPageError:
		s.pageOutcomes.WithLabelValues("failed").Inc()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type batchTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newBatchTracker() *batchTracker {
	return &batchTracker{running: make(map[string]struct{})}
}

func (t *batchTracker) start(projectID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[projectID]; ok {
		return false
	}
	t.running[projectID] = struct{}{}
	return true
}

func (t *batchTracker) complete(projectID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[projectID]; !ok {
		return false
	}
	delete(t.running, projectID)
	return true
}
