package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

// MergeAdvisor asks the model which agents' results to keep when several
// search agents ran. Validation failures surface as errors; the merge
// layer owns the fallback to the first collected agent.
type MergeAdvisor struct {
	client *Client
}

func NewMergeAdvisor(client *Client) *MergeAdvisor {
	return &MergeAdvisor{client: client}
}

func (m *MergeAdvisor) Decide(ctx context.Context, query string, results []domain.AgentResult) (domain.MergeDecision, error) {
	var decision domain.MergeDecision
	if err := m.client.structuredJSON(ctx, "merge", buildMergePrompt(query, results), &decision, nil); err != nil {
		return domain.MergeDecision{}, err
	}

	ids := make([]string, 0, len(decision.SelectedAgentIDs))
	for _, id := range decision.SelectedAgentIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return domain.MergeDecision{}, fmt.Errorf("merge: selected_agent_ids is empty")
	}
	decision.SelectedAgentIDs = ids

	switch decision.MergeStrategy {
	case domain.MergeStrategySingle, domain.MergeStrategyMerge:
	default:
		decision.MergeStrategy = domain.MergeStrategySingle
	}
	return decision, nil
}
