package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

// IntentExtractor derives a normalized search query from the raw user
// question. Callers decide what to do on failure; this type never
// substitutes a fallback by itself.
type IntentExtractor struct {
	client *Client
}

func NewIntentExtractor(client *Client) *IntentExtractor {
	return &IntentExtractor{client: client}
}

type intentPayload struct {
	NormalizedQuery string               `json:"normalized_query"`
	Filters         domain.SearchFilters `json:"filters"`
	Followups       []string             `json:"followups"`
	Ambiguity       string               `json:"ambiguity"`
}

func (e *IntentExtractor) Extract(ctx context.Context, req domain.IntentRequest) (domain.Intent, error) {
	var payload intentPayload
	if err := e.client.structuredJSON(ctx, "intent", buildIntentPrompt(req), &payload, payload.validate); err != nil {
		return domain.Intent{}, err
	}
	return payload.toIntent(req.Filters)
}

func (e *IntentExtractor) ExtractRetry(ctx context.Context, req domain.IntentRequest, previous domain.Intent, previousHits []domain.SearchHit) (domain.Intent, error) {
	prompt := buildRetryIntentPrompt(req, previous, previousHits)
	if len(previousHits) == 0 {
		prompt = buildRetryIntentNoResultsPrompt(req, previous)
	}

	var payload intentPayload
	if err := e.client.structuredJSON(ctx, "retry intent", prompt, &payload, payload.validate); err != nil {
		return domain.Intent{}, err
	}
	return payload.toIntent(req.Filters)
}

// validate is the repair trigger: a payload that parses but carries an
// empty normalized_query is as unusable as malformed JSON.
func (p *intentPayload) validate() error {
	if strings.TrimSpace(p.NormalizedQuery) == "" {
		return fmt.Errorf("normalized_query is empty")
	}
	return nil
}

// toIntent validates the model output. Filters requested by the caller
// always win over filters the model proposed.
func (p intentPayload) toIntent(requested domain.SearchFilters) (domain.Intent, error) {
	normalized := strings.TrimSpace(p.NormalizedQuery)
	if normalized == "" {
		return domain.Intent{}, fmt.Errorf("intent: normalized_query is empty")
	}

	filters := p.Filters
	if requested.Site != "" {
		filters.Site = requested.Site
	}
	if requested.MimeType != "" {
		filters.MimeType = requested.MimeType
	}
	if requested.UpdatedAfter != "" {
		filters.UpdatedAfter = requested.UpdatedAfter
	}

	followups := make([]string, 0, 3)
	for _, q := range p.Followups {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		followups = append(followups, q)
		if len(followups) == 3 {
			break
		}
	}

	return domain.Intent{
		NormalizedQuery: normalized,
		Filters:         filters,
		Followups:       followups,
		Ambiguity:       parseAmbiguity(p.Ambiguity),
		Source:          domain.IntentSourceLLM,
	}, nil
}

func parseAmbiguity(raw string) domain.Ambiguity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return domain.AmbiguityLow
	case "high":
		return domain.AmbiguityHigh
	default:
		return domain.AmbiguityMedium
	}
}
