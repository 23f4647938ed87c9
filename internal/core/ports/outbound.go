package ports

import (
	"context"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

// SearchProvider executes full-text queries against the search backend.
type SearchProvider interface {
	Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchPage, error)
	Health(ctx context.Context) error
}

// IntentExtractor turns a raw user query into a normalized search intent.
// ExtractRetry reformulates after a weak attempt; previousHits may be empty.
type IntentExtractor interface {
	Extract(ctx context.Context, req domain.IntentRequest) (domain.Intent, error)
	ExtractRetry(ctx context.Context, req domain.IntentRequest, previous domain.Intent, previousHits []domain.SearchHit) (domain.Intent, error)
}

// RelevanceScorer judges one hit against the user query.
type RelevanceScorer interface {
	Score(ctx context.Context, query, normalizedQuery string, hit domain.SearchHit) (domain.RelevanceJudgement, error)
}

// AnswerComposer produces the final user-facing answer from retrieved hits.
type AnswerComposer interface {
	Compose(ctx context.Context, req domain.RetrievalRequest, intent domain.Intent, hits []domain.SearchHit) (domain.ComposedAnswer, error)
	ComposeStream(ctx context.Context, req domain.RetrievalRequest, intent domain.Intent, hits []domain.SearchHit, onChunk func(string) error) error
}

// MergeDecider chooses how to combine results collected from several agents.
type MergeDecider interface {
	Decide(ctx context.Context, query string, results []domain.AgentResult) (domain.MergeDecision, error)
}

// ModelCatalog reports and switches the generation model.
type ModelCatalog interface {
	ListModels(ctx context.Context) ([]string, error)
	ActiveModel() string
	SelectModel(ctx context.Context, name string) error
}

// LLMRuntime covers lifecycle concerns of the model host.
type LLMRuntime interface {
	Health(ctx context.Context) error
	Warmup(ctx context.Context) error
}
