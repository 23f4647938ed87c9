package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avoskres/assisted-search/internal/core/domain"
	"github.com/avoskres/assisted-search/internal/core/ports"
)

// Merger fans one request out to every agent, then reduces the collected
// results to a single outcome. Events from all agents interleave on the
// shared sink but stay ordered within each agent.
type Merger struct {
	agents       []ports.SearchAgent
	advisor      ports.MergeDecider
	decideBudget time.Duration
	logger       *slog.Logger
}

func NewMerger(agents []ports.SearchAgent, advisor ports.MergeDecider, decideBudget time.Duration, logger *slog.Logger) *Merger {
	if decideBudget <= 0 {
		decideBudget = 5 * time.Second
	}
	return &Merger{
		agents:       agents,
		advisor:      advisor,
		decideBudget: decideBudget,
		logger:       logger,
	}
}

func (m *Merger) Run(ctx context.Context, req domain.RetrievalRequest, sink domain.EventSink) (*domain.RetrievalOutcome, error) {
	if sink == nil {
		sink = func(domain.Event) {}
	}

	var sinkMu sync.Mutex
	outcomes := make([]*domain.RetrievalOutcome, len(m.agents))

	var wg sync.WaitGroup
	for i, ag := range m.agents {
		wg.Add(1)
		go func(idx int, ag ports.SearchAgent) {
			defer wg.Done()

			tagged := func(ev domain.Event) {
				ev.AgentID = ag.ID()
				ev.AgentName = ag.Name()
				sinkMu.Lock()
				sink(ev)
				sinkMu.Unlock()
			}

			outcome, err := ag.Run(ctx, req, tagged)
			if err != nil {
				m.logger.Warn("agent_run_failed", "agent_id", ag.ID(), "error", err)
				return
			}
			outcomes[idx] = outcome
		}(i, ag)
	}
	wg.Wait()

	collected := make([]domain.AgentResult, 0, len(m.agents))
	for i, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		collected = append(collected, domain.AgentResult{
			AgentID:   m.agents[i].ID(),
			AgentName: m.agents[i].Name(),
			Outcome:   *outcome,
		})
	}

	switch len(collected) {
	case 0:
		return &domain.RetrievalOutcome{Hits: []domain.SearchHit{}}, nil
	case 1:
		outcome := collected[0].Outcome
		return &outcome, nil
	}

	return m.reduce(ctx, req.Query, collected), nil
}

// reduce applies the advisor's decision. Any advisor failure, and any
// decision that selects no known agent, falls back to the first
// collected agent's results.
func (m *Merger) reduce(ctx context.Context, query string, collected []domain.AgentResult) *domain.RetrievalOutcome {
	decideCtx, cancel := context.WithTimeout(ctx, m.decideBudget)
	defer cancel()

	decision, err := m.advisor.Decide(decideCtx, query, collected)
	if err != nil {
		m.logger.Warn("merge_decision_failed", "error", err)
		outcome := collected[0].Outcome
		return &outcome
	}

	byID := make(map[string]domain.AgentResult, len(collected))
	for _, result := range collected {
		byID[result.AgentID] = result
	}
	selected := make([]domain.AgentResult, 0, len(decision.SelectedAgentIDs))
	for _, id := range decision.SelectedAgentIDs {
		if result, ok := byID[id]; ok {
			selected = append(selected, result)
		}
	}
	if len(selected) == 0 {
		m.logger.Warn("merge_decision_unusable", "selected", decision.SelectedAgentIDs)
		outcome := collected[0].Outcome
		return &outcome
	}

	m.logger.Info("merge_decision",
		"strategy", string(decision.MergeStrategy),
		"selected", decision.SelectedAgentIDs,
		"reason", decision.Reason,
	)

	if decision.MergeStrategy == domain.MergeStrategySingle || len(selected) == 1 {
		outcome := selected[0].Outcome
		return &outcome
	}

	merged := &domain.RetrievalOutcome{Intent: selected[0].Outcome.Intent}
	for _, result := range selected {
		merged.Hits = append(merged.Hits, result.Outcome.Hits...)
		merged.Total += result.Outcome.Total
		merged.SearchTookMs += result.Outcome.SearchTookMs
		if result.Outcome.MaxScore > merged.MaxScore {
			merged.MaxScore = result.Outcome.MaxScore
		}
		if result.Outcome.Retries > merged.Retries {
			merged.Retries = result.Outcome.Retries
		}
		if merged.Notice == nil {
			merged.Notice = result.Outcome.Notice
		}
	}
	SortByRelevance(merged.Hits)
	return merged
}
