package agent

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/avoskres/assisted-search/internal/core/domain"
	"github.com/avoskres/assisted-search/internal/core/ports"
)

const (
	defaultMaxConcurrent   = 5
	defaultEvaluationCount = 10
)

// unscoredSortKey ranks hits without a judgement below every scored hit.
// It never leaks into responses.
const unscoredSortKey = -1.0

// BatchEvaluator judges the head of a result list under a wall-clock
// budget. The budget is all-or-nothing: when it expires before every
// judged item finished, the caller gets the original slice back so a
// half-scored list never masquerades as a ranked one.
type BatchEvaluator struct {
	scorer        ports.RelevanceScorer
	maxConcurrent int64
	evalCount     int
	logger        *slog.Logger
}

func NewBatchEvaluator(scorer ports.RelevanceScorer, maxConcurrent, evalCount int, logger *slog.Logger) *BatchEvaluator {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if evalCount <= 0 {
		evalCount = defaultEvaluationCount
	}
	return &BatchEvaluator{
		scorer:        scorer,
		maxConcurrent: int64(maxConcurrent),
		evalCount:     evalCount,
		logger:        logger,
	}
}

// Evaluate returns the hits re-ranked by relevance, the maximum score
// observed and the number of judged items. Hits beyond the evaluation
// head pass through unscored and sort last; ties keep arrival order.
func (b *BatchEvaluator) Evaluate(ctx context.Context, query, normalizedQuery string, hits []domain.SearchHit, budget time.Duration) ([]domain.SearchHit, float64, int) {
	if len(hits) == 0 {
		return hits, 0, 0
	}

	count := b.evalCount
	if count > len(hits) {
		count = len(hits)
	}
	if budget <= 0 {
		return hits, 0, 0
	}

	budgetCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	perItem := budget / time.Duration(count)

	judgements := make([]*domain.RelevanceJudgement, count)
	sem := semaphore.NewWeighted(b.maxConcurrent)
	var wg sync.WaitGroup

	budgetBlown := false
	for i := 0; i < count; i++ {
		if err := sem.Acquire(budgetCtx, 1); err != nil {
			budgetBlown = true
			break
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)

			itemCtx, itemCancel := context.WithTimeout(budgetCtx, perItem)
			defer itemCancel()

			judgement, err := b.scorer.Score(itemCtx, query, normalizedQuery, hits[idx])
			if err != nil {
				b.logger.Debug("relevance_item_unscored", "doc_id", hits[idx].ID, "error", err)
				return
			}
			judgements[idx] = &judgement
		}(i)
	}
	wg.Wait()

	if budgetBlown || budgetCtx.Err() != nil {
		b.logger.Warn("relevance_budget_exhausted",
			"budget_ms", budget.Milliseconds(),
			"candidates", count,
		)
		return hits, 0, 0
	}

	scored := make([]domain.SearchHit, len(hits))
	copy(scored, hits)
	maxScore := 0.0
	evaluated := 0
	for i, judgement := range judgements {
		if judgement == nil {
			continue
		}
		evaluated++
		score := judgement.Score
		scored[i].RelevanceScore = &score
		scored[i].RelevanceReason = judgement.Reason
		if score > maxScore {
			maxScore = score
		}
	}

	SortByRelevance(scored)
	return scored, maxScore, evaluated
}

// SortByRelevance orders hits by relevance score descending, unscored
// hits last, preserving arrival order between equals.
func SortByRelevance(hits []domain.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return relevanceKey(hits[i]) > relevanceKey(hits[j])
	})
}

func relevanceKey(hit domain.SearchHit) float64 {
	if hit.RelevanceScore == nil {
		return unscoredSortKey
	}
	return *hit.RelevanceScore
}
