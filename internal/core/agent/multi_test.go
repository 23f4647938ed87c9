package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avoskres/assisted-search/internal/core/domain"
	"github.com/avoskres/assisted-search/internal/core/ports"
)

type agentFake struct {
	id      string
	name    string
	outcome *domain.RetrievalOutcome
	err     error
	events  []domain.Event
}

func (f *agentFake) ID() string   { return f.id }
func (f *agentFake) Name() string { return f.name }

func (f *agentFake) Run(_ context.Context, _ domain.RetrievalRequest, sink domain.EventSink) (*domain.RetrievalOutcome, error) {
	for _, ev := range f.events {
		sink(ev)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

type deciderFake struct {
	decision domain.MergeDecision
	err      error
	calls    int
}

func (f *deciderFake) Decide(context.Context, string, []domain.AgentResult) (domain.MergeDecision, error) {
	f.calls++
	if f.err != nil {
		return domain.MergeDecision{}, f.err
	}
	return f.decision, nil
}

func outcomeWithScores(scores map[string]float64, total int) *domain.RetrievalOutcome {
	outcome := &domain.RetrievalOutcome{Total: total}
	for id, score := range scores {
		s := score
		outcome.Hits = append(outcome.Hits, domain.SearchHit{ID: id, RelevanceScore: &s})
		if score > outcome.MaxScore {
			outcome.MaxScore = score
		}
	}
	SortByRelevance(outcome.Hits)
	return outcome
}

func newTestMerger(t *testing.T, agents []*agentFake, decider *deciderFake) *Merger {
	t.Helper()
	list := make([]ports.SearchAgent, 0, len(agents))
	for _, ag := range agents {
		list = append(list, ag)
	}
	return NewMerger(list, decider, time.Second, testLogger())
}

func TestMergerAllAgentsFailedYieldsEmptyOutcome(t *testing.T) {
	decider := &deciderFake{}
	m := newTestMerger(t,
		[]*agentFake{
			{id: "fess", name: "Fess", err: errors.New("search down")},
			{id: "wiki", name: "Wiki", err: errors.New("search down")},
		},
		decider,
	)

	outcome, err := m.Run(context.Background(), domain.RetrievalRequest{Query: "q"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Hits) != 0 || outcome.Total != 0 {
		t.Fatalf("expected empty outcome, got %d hits, total %d", len(outcome.Hits), outcome.Total)
	}
	if decider.calls != 0 {
		t.Fatalf("expected no merge decision for empty collection")
	}
}

func TestMergerSingleResultSkipsDecision(t *testing.T) {
	decider := &deciderFake{}
	m := newTestMerger(t,
		[]*agentFake{
			{id: "fess", name: "Fess", outcome: outcomeWithScores(map[string]float64{"a": 0.8}, 3)},
			{id: "wiki", name: "Wiki", err: errors.New("timeout")},
		},
		decider,
	)

	outcome, err := m.Run(context.Background(), domain.RetrievalRequest{Query: "q"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decider.calls != 0 {
		t.Fatalf("expected decider to be skipped for a single result, called %d times", decider.calls)
	}
	if len(outcome.Hits) != 1 || outcome.Hits[0].ID != "a" {
		t.Fatalf("expected the surviving agent's hits verbatim, got %+v", outcome.Hits)
	}
}

func TestMergerMergeStrategyConcatenatesAndSorts(t *testing.T) {
	decider := &deciderFake{decision: domain.MergeDecision{
		SelectedAgentIDs: []string{"fess", "wiki"},
		Reason:           "both contribute",
		MergeStrategy:    domain.MergeStrategyMerge,
	}}
	m := newTestMerger(t,
		[]*agentFake{
			{id: "fess", name: "Fess", outcome: outcomeWithScores(map[string]float64{"a": 0.4}, 2)},
			{id: "wiki", name: "Wiki", outcome: outcomeWithScores(map[string]float64{"b": 0.9}, 3)},
		},
		decider,
	)

	outcome, err := m.Run(context.Background(), domain.RetrievalRequest{Query: "q"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Hits) != 2 {
		t.Fatalf("expected merged hits, got %d", len(outcome.Hits))
	}
	if outcome.Hits[0].ID != "b" {
		t.Fatalf("expected highest relevance first after merge, got %q", outcome.Hits[0].ID)
	}
	if outcome.Total != 5 {
		t.Fatalf("expected summed totals, got %d", outcome.Total)
	}
	if outcome.MaxScore != 0.9 {
		t.Fatalf("expected max score 0.9, got %.2f", outcome.MaxScore)
	}
}

func TestMergerSingleStrategyTakesFirstSelected(t *testing.T) {
	decider := &deciderFake{decision: domain.MergeDecision{
		SelectedAgentIDs: []string{"wiki"},
		Reason:           "wiki wins",
		MergeStrategy:    domain.MergeStrategySingle,
	}}
	m := newTestMerger(t,
		[]*agentFake{
			{id: "fess", name: "Fess", outcome: outcomeWithScores(map[string]float64{"a": 0.4}, 2)},
			{id: "wiki", name: "Wiki", outcome: outcomeWithScores(map[string]float64{"b": 0.9}, 3)},
		},
		decider,
	)

	outcome, err := m.Run(context.Background(), domain.RetrievalRequest{Query: "q"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Hits) != 1 || outcome.Hits[0].ID != "b" {
		t.Fatalf("expected wiki results only, got %+v", outcome.Hits)
	}
}

func TestMergerDecisionFailureFallsBackToFirstCollected(t *testing.T) {
	decider := &deciderFake{err: errors.New("model unavailable")}
	m := newTestMerger(t,
		[]*agentFake{
			{id: "fess", name: "Fess", outcome: outcomeWithScores(map[string]float64{"a": 0.4}, 2)},
			{id: "wiki", name: "Wiki", outcome: outcomeWithScores(map[string]float64{"b": 0.9}, 3)},
		},
		decider,
	)

	outcome, err := m.Run(context.Background(), domain.RetrievalRequest{Query: "q"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Hits) != 1 || outcome.Hits[0].ID != "a" {
		t.Fatalf("expected fallback to first collected agent, got %+v", outcome.Hits)
	}
}

func TestMergerUnknownSelectedIDsFallBack(t *testing.T) {
	decider := &deciderFake{decision: domain.MergeDecision{
		SelectedAgentIDs: []string{"ghost"},
		MergeStrategy:    domain.MergeStrategyMerge,
	}}
	m := newTestMerger(t,
		[]*agentFake{
			{id: "fess", name: "Fess", outcome: outcomeWithScores(map[string]float64{"a": 0.4}, 2)},
			{id: "wiki", name: "Wiki", outcome: outcomeWithScores(map[string]float64{"b": 0.9}, 3)},
		},
		decider,
	)

	outcome, err := m.Run(context.Background(), domain.RetrievalRequest{Query: "q"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Hits) != 1 || outcome.Hits[0].ID != "a" {
		t.Fatalf("expected fallback to first collected agent, got %+v", outcome.Hits)
	}
}

func TestMergerTagsEventsWithAgentIdentity(t *testing.T) {
	m := newTestMerger(t,
		[]*agentFake{
			{
				id: "fess", name: "Fess",
				outcome: outcomeWithScores(map[string]float64{"a": 0.8}, 1),
				events:  []domain.Event{domain.StatusOf(domain.PhaseSearch, "searching")},
			},
		},
		&deciderFake{},
	)

	var tagged []domain.Event
	_, err := m.Run(context.Background(), domain.RetrievalRequest{Query: "q"}, func(ev domain.Event) {
		tagged = append(tagged, ev)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tagged) != 1 {
		t.Fatalf("expected 1 forwarded event, got %d", len(tagged))
	}
	if tagged[0].AgentID != "fess" || tagged[0].AgentName != "Fess" {
		t.Fatalf("expected agent tags, got %+v", tagged[0])
	}
}
