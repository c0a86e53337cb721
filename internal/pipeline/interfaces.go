package pipeline

import (
	"context"
	"time"
)

// BriefProvider fetches a structured content brief for a keyword.
type BriefProvider interface {
	FetchBrief(ctx context.Context, keyword string, page PageContext) (Brief, error)
}

// GenerationProvider produces draft content from a brief and keyword. It has
// no fallback: a generation error fails the page outright.
type GenerationProvider interface {
	Generate(ctx context.Context, brief Brief, keyword string, page PageContext) (string, error)
}

// QAProvider scores generated content against its brief.
type QAProvider interface {
	Score(ctx context.Context, content string, brief Brief) (QAResult, error)
}

// BlobStore archives generated drafts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes page-completion events downstream (Pub/Sub or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher fingerprints generated content for audit and change detection.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces page IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
