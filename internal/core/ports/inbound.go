package ports

import (
	"context"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

// Assistant is the inbound contract for answering user queries.
//
// Stream runs the full pipeline, publishing progress events through sink
// and answer fragments through onChunk as they are produced; the returned
// answer carries the assembled text and final citations. Query is the
// non-streaming variant.
type Assistant interface {
	Query(ctx context.Context, req domain.AssistRequest) (*domain.AssistAnswer, error)
	Stream(ctx context.Context, req domain.AssistRequest, sink domain.EventSink, onChunk func(string) error) (*domain.AssistAnswer, error)
	Feedback(ctx context.Context, fb domain.Feedback) error
}

// SearchAgent runs one retrieval loop under its own identity and budget.
type SearchAgent interface {
	ID() string
	Name() string
	Run(ctx context.Context, req domain.RetrievalRequest, sink domain.EventSink) (*domain.RetrievalOutcome, error)
}
