package domain

import "strings"

type Ambiguity string

const (
	AmbiguityLow    Ambiguity = "low"
	AmbiguityMedium Ambiguity = "medium"
	AmbiguityHigh   Ambiguity = "high"
)

type IntentSource string

const (
	IntentSourceLLM      IntentSource = "llm"
	IntentSourceFallback IntentSource = "fallback"
)

// Intent is the normalized search plan extracted from a raw user query.
type Intent struct {
	NormalizedQuery string        `json:"normalized_query"`
	Filters         SearchFilters `json:"filters"`
	Followups       []string      `json:"followups,omitempty"`
	Ambiguity       Ambiguity     `json:"ambiguity"`
	Source          IntentSource  `json:"source"`
}

// FallbackIntent substitutes the trimmed raw query when intent
// extraction is unavailable. Filters supplied by the caller survive.
func FallbackIntent(query string, filters SearchFilters) Intent {
	return Intent{
		NormalizedQuery: strings.TrimSpace(query),
		Filters:         filters,
		Ambiguity:       AmbiguityMedium,
		Source:          IntentSourceFallback,
	}
}

type IntentRequest struct {
	Query    string
	Language string
	Filters  SearchFilters
	History  []string
}
