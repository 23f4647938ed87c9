package ollama

import (
	"context"
	"log/slog"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

const neutralScore = 0.5

// RelevanceJudge rates hits with the model. When the model cannot produce
// a usable judgement it degrades to a neutral score instead of failing,
// so one stubborn document never sinks the whole relevance pass. Context
// expiry still propagates, the batch layer owns that budget.
type RelevanceJudge struct {
	client *Client
	logger *slog.Logger
}

func NewRelevanceJudge(client *Client, logger *slog.Logger) *RelevanceJudge {
	return &RelevanceJudge{client: client, logger: logger}
}

func (j *RelevanceJudge) Score(ctx context.Context, query, _ string, hit domain.SearchHit) (domain.RelevanceJudgement, error) {
	var payload domain.RelevanceJudgement
	err := j.client.structuredJSON(ctx, "relevance", buildRelevancePrompt(query, hit), &payload, nil)
	if err != nil {
		if ctx.Err() != nil {
			return domain.RelevanceJudgement{}, ctx.Err()
		}
		j.logger.Warn("relevance_judgement_degraded", "doc_id", hit.ID, "error", err)
		return domain.RelevanceJudgement{
			Score:  neutralScore,
			Reason: "judgement unavailable, neutral score assigned",
		}, nil
	}

	if payload.Score < 0 {
		payload.Score = 0
	}
	if payload.Score > 1 {
		payload.Score = 1
	}
	return payload, nil
}
