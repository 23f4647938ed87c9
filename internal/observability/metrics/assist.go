package metrics

import (
	"time"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

func (m *HTTPServerMetrics) RecordAssistRequest(service, endpoint, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.assistRequestsTotal.WithLabelValues(service, endpoint, outcome).Inc()
	m.assistDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordRetrieval(service, endpoint string, answer *domain.AssistAnswer) {
	if answer == nil {
		return
	}
	m.assistRetries.WithLabelValues(service, endpoint).Observe(float64(answer.Retries))
	m.assistRelevanceScore.WithLabelValues(service, endpoint).Observe(answer.MaxScore)
	if len(answer.Citations) == 0 {
		m.assistNoResultsTotal.WithLabelValues(service, endpoint).Inc()
	}
	if answer.Notice != nil {
		m.RecordFallback(service, answer.Notice.Reason)
	}
}

func (m *HTTPServerMetrics) RecordFallback(service string, reason domain.NoticeReason) {
	label := string(reason)
	if label == "" {
		label = "unknown"
	}
	m.assistFallbacksTotal.WithLabelValues(service, label).Inc()
}

func (m *HTTPServerMetrics) RecordMergeDecision(service string, strategy domain.MergeStrategy) {
	label := string(strategy)
	if label == "" {
		label = "unknown"
	}
	m.assistMergeTotal.WithLabelValues(service, label).Inc()
}

func (m *HTTPServerMetrics) RecordStreamChunks(service string, chunks int) {
	if chunks <= 0 {
		return
	}
	m.assistStreamChunks.WithLabelValues(service).Observe(float64(chunks))
}

func (m *HTTPServerMetrics) RecordFeedback(service string, rating domain.FeedbackRating) {
	m.assistFeedbackTotal.WithLabelValues(service, string(rating)).Inc()
}
