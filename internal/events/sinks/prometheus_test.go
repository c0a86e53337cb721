package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/events"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []events.Event{
		{ProjectID: "proj-1", TS: now, Kind: events.KindBatchStart, Pages: 2},
		{ProjectID: "proj-1", PageID: "page-1", TS: now.Add(time.Second), Kind: events.KindPageStage, Stage: "writing"},
		{ProjectID: "proj-1", PageID: "page-1", TS: now.Add(5 * time.Second), Kind: events.KindPageDone, Dur: 5 * time.Second},
		{ProjectID: "proj-1", PageID: "page-2", TS: now.Add(6 * time.Second), Kind: events.KindPageError, Note: "generate content: boom"},
		{ProjectID: "proj-1", TS: now.Add(7 * time.Second), Kind: events.KindBatchDone, Pages: 2, Dur: 7 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.batchesStarted))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.batchesRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.stageTransitions.WithLabelValues("writing")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pageOutcomes.WithLabelValues("complete")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pageOutcomes.WithLabelValues("failed")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.batchRuntime, "contentgen_batch_runtime_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.batchPages, "contentgen_batch_pages"))
}

// TestPrometheusSinkTracksRunningBatches ensures the running gauge follows start/done pairs.
func TestPrometheusSinkTracksRunningBatches(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []events.Event{
		{ProjectID: "proj-1", TS: now, Kind: events.KindBatchStart, Pages: 1},
		{ProjectID: "proj-2", TS: now, Kind: events.KindBatchStart, Pages: 1},
	}))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.batchesRunning))

	// A duplicate start for a tracked project must not double-count.
	require.NoError(t, sink.Consume(context.Background(), []events.Event{
		{ProjectID: "proj-1", TS: now.Add(time.Second), Kind: events.KindBatchStart, Pages: 1},
	}))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.batchesRunning))

	require.NoError(t, sink.Consume(context.Background(), []events.Event{
		{ProjectID: "proj-1", TS: now.Add(2 * time.Second), Kind: events.KindBatchDone, Pages: 1, Dur: 2 * time.Second},
	}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.batchesRunning))
}
