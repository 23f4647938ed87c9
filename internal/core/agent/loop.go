package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avoskres/assisted-search/internal/core/domain"
	"github.com/avoskres/assisted-search/internal/core/ports"
	"github.com/avoskres/assisted-search/internal/i18n"
)

const (
	retryReasonNoResults    = "no_results"
	retryReasonLowRelevance = "low_relevance"
)

type LoopConfig struct {
	RelevanceThreshold float64
	MaxRetries         int
	SearchSize         int

	IntentTimeout   time.Duration
	SearchTimeout   time.Duration
	RelevanceBudget time.Duration

	RetryIntentTimeout   time.Duration
	RetrySearchTimeout   time.Duration
	RetryRelevanceBudget time.Duration
}

func (c LoopConfig) normalize() LoopConfig {
	out := c
	if out.RelevanceThreshold <= 0 {
		out.RelevanceThreshold = 0.3
	}
	if out.MaxRetries < 0 {
		out.MaxRetries = 0
	}
	if out.SearchSize <= 0 {
		out.SearchSize = 10
	}
	if out.IntentTimeout <= 0 {
		out.IntentTimeout = 3 * time.Second
	}
	if out.SearchTimeout <= 0 {
		out.SearchTimeout = 2 * time.Second
	}
	if out.RelevanceBudget <= 0 {
		out.RelevanceBudget = 4 * time.Second
	}
	if out.RetryIntentTimeout <= 0 {
		out.RetryIntentTimeout = out.IntentTimeout
	}
	if out.RetrySearchTimeout <= 0 {
		out.RetrySearchTimeout = out.SearchTimeout
	}
	if out.RetryRelevanceBudget <= 0 {
		out.RetryRelevanceBudget = out.RelevanceBudget
	}
	return out
}

// Loop drives one retrieval cycle: intent extraction, search, relevance
// evaluation and the retry decision. A retry happens while the best
// relevance score stays under the threshold and the retry budget is not
// exhausted; an empty result set always retries while budget remains.
// Exhausting retries is not an error, the last attempt is returned as-is.
type Loop struct {
	search    ports.SearchProvider
	intents   ports.IntentExtractor
	relevance *BatchEvaluator
	cfg       LoopConfig
	logger    *slog.Logger
}

func NewLoop(search ports.SearchProvider, intents ports.IntentExtractor, relevance *BatchEvaluator, cfg LoopConfig, logger *slog.Logger) *Loop {
	return &Loop{
		search:    search,
		intents:   intents,
		relevance: relevance,
		cfg:       cfg.normalize(),
		logger:    logger,
	}
}

func (l *Loop) Run(ctx context.Context, req domain.RetrievalRequest, sink domain.EventSink) (*domain.RetrievalOutcome, error) {
	if sink == nil {
		sink = func(domain.Event) {}
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieval", fmt.Errorf("query is required"))
	}

	intentReq := domain.IntentRequest{
		Query:    req.Query,
		Language: req.Language,
		Filters:  req.Filters,
		History:  req.History,
	}

	var (
		notice            *domain.Notice
		previousIntent    domain.Intent
		previousHits      []domain.SearchHit
		totalSearchTookMs int64
	)

	for retry := 0; ; retry++ {
		statusKey := i18n.KeyAnalyzing
		if retry > 0 {
			statusKey = i18n.KeyRetrying
		}
		sink(domain.StatusOf(domain.PhaseIntent, i18n.Message(req.Language, statusKey)))

		intent, intentNotice := l.extractIntent(ctx, intentReq, retry, previousIntent, previousHits)
		if intentNotice != nil && notice == nil {
			notice = intentNotice
		}
		sink(domain.IntentOf(intent))

		sink(domain.StatusOf(domain.PhaseSearch, i18n.Message(req.Language, i18n.KeySearching)))
		page, err := l.runSearch(ctx, intent, retry)
		if err != nil {
			return nil, err
		}
		totalSearchTookMs += page.TookMs
		hits := page.Hits

		maxScore := 0.0
		evaluated := 0
		if len(hits) > 0 {
			sink(domain.StatusOf(domain.PhaseRelevance, i18n.Message(req.Language, i18n.KeyEvaluating)))
			budget := l.cfg.RelevanceBudget
			if retry > 0 {
				budget = l.cfg.RetryRelevanceBudget
			}
			hits, maxScore, evaluated = l.relevance.Evaluate(ctx, req.Query, intent.NormalizedQuery, hits, budget)
			sink(domain.RelevanceOf(maxScore, evaluated))
		}

		wantRetry := len(hits) == 0 || maxScore < l.cfg.RelevanceThreshold
		if !wantRetry || retry >= l.cfg.MaxRetries {
			sink(domain.CitationsOf(hits, page.Total, totalSearchTookMs))
			return &domain.RetrievalOutcome{
				Intent:       intent,
				Hits:         hits,
				Total:        page.Total,
				SearchTookMs: totalSearchTookMs,
				MaxScore:     maxScore,
				Retries:      retry,
				Notice:       notice,
			}, nil
		}

		reason := retryReasonLowRelevance
		if len(hits) == 0 {
			reason = retryReasonNoResults
		}
		l.logger.Info("retrieval_retry",
			"attempt", retry+1,
			"reason", reason,
			"max_score", maxScore,
			"query", intent.NormalizedQuery,
		)
		sink(domain.RetryOf(retry+1, reason, intent.NormalizedQuery, maxScore))

		previousIntent = intent
		previousHits = hits
	}
}

// extractIntent never fails: an extraction error degrades to the trimmed
// raw query with a notice attached.
func (l *Loop) extractIntent(ctx context.Context, req domain.IntentRequest, retry int, previous domain.Intent, previousHits []domain.SearchHit) (domain.Intent, *domain.Notice) {
	timeout := l.cfg.IntentTimeout
	if retry > 0 {
		timeout = l.cfg.RetryIntentTimeout
	}
	intentCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		intent domain.Intent
		err    error
	)
	if retry == 0 {
		intent, err = l.intents.Extract(intentCtx, req)
	} else {
		intent, err = l.intents.ExtractRetry(intentCtx, req, previous, previousHits)
	}
	if err == nil {
		return intent, nil
	}

	reason := domain.NoticeIntentFailed
	if domain.IsKind(err, domain.ErrLLMUnavailable) {
		reason = domain.NoticeLLMUnavailable
	}
	l.logger.Warn("intent_fallback", "retry", retry, "reason", string(reason), "error", err)
	return domain.FallbackIntent(req.Query, req.Filters),
		domain.FallbackNotice(reason, "intent extraction failed, searching with the raw query")
}

// runSearch wraps backend failures as fatal: a broken search cannot be
// papered over with a degraded answer.
func (l *Loop) runSearch(ctx context.Context, intent domain.Intent, retry int) (*domain.SearchPage, error) {
	timeout := l.cfg.SearchTimeout
	if retry > 0 {
		timeout = l.cfg.RetrySearchTimeout
	}
	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := l.search.Search(searchCtx, domain.SearchQuery{
		Query:   intent.NormalizedQuery,
		Size:    l.cfg.SearchSize,
		Sort:    domain.SortRelevance,
		Filters: intent.Filters,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrSearchBackend) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrSearchBackend, "search", err)
	}
	return page, nil
}
