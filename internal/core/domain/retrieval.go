package domain

type RetrievalRequest struct {
	Query    string
	Language string
	Filters  SearchFilters
	History  []string
}

// RetrievalAttempt captures one pass of the search loop.
type RetrievalAttempt struct {
	Number       int
	Intent       Intent
	Hits         []SearchHit
	Total        int
	SearchTookMs int64
	MaxScore     float64
}

// RetrievalOutcome is the terminal state of the loop: the hits of the
// final attempt plus search time accumulated across every attempt.
type RetrievalOutcome struct {
	Intent       Intent
	Hits         []SearchHit
	Total        int
	SearchTookMs int64
	MaxScore     float64
	Retries      int
	Notice       *Notice
}

type RelevanceJudgement struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

type AgentDescriptor struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Priority  int    `json:"priority" yaml:"priority"`
	TimeoutMs int    `json:"timeout_ms" yaml:"timeout_ms"`
}

type AgentResult struct {
	AgentID   string           `json:"agent_id"`
	AgentName string           `json:"agent_name"`
	Outcome   RetrievalOutcome `json:"outcome"`
}

type MergeStrategy string

const (
	MergeStrategySingle MergeStrategy = "single"
	MergeStrategyMerge  MergeStrategy = "merge"
)

type MergeDecision struct {
	SelectedAgentIDs []string      `json:"selected_agent_ids"`
	Reason           string        `json:"reason"`
	MergeStrategy    MergeStrategy `json:"merge_strategy"`
}
