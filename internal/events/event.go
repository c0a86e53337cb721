// Package events defines the event structures emitted by the pipeline orchestrator.
package events

import (
	"errors"
	"fmt"
	"time"
)

// Kind denotes the type of milestone represented by an Event.
type Kind string

// Supported event kinds.
const (
	KindBatchStart Kind = "BATCH_START"
	KindBatchDone  Kind = "BATCH_DONE"
	KindPageStage  Kind = "PAGE_STAGE"
	KindPageDone   Kind = "PAGE_DONE"
	KindPageError  Kind = "PAGE_ERROR"
)

// Event captures a single component of pipeline progress.
type Event struct {
	// ProjectID scopes the event to one project batch.
	ProjectID string
	// PageID identifies the page for page-level events.
	PageID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Kind denotes which lifecycle or page milestone occurred.
	Kind Kind
	// Stage carries the pipeline stage label for PAGE_STAGE events.
	Stage string
	// Pages carries the batch size for batch events.
	Pages int
	// Dur captures execution latency for page and batch completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.ProjectID == "" {
		return errors.New("project id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindBatchStart, KindBatchDone:
	case KindPageStage:
		if e.PageID == "" {
			return errors.New("page stage requires page id")
		}
		if e.Stage == "" {
			return errors.New("page stage requires stage")
		}
	case KindPageDone, KindPageError:
		if e.PageID == "" {
			return errors.New("page completion requires page id")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
