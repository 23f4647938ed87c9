package domain

type EventType string

const (
	EventStatus    EventType = "status"
	EventIntent    EventType = "intent"
	EventCitations EventType = "citations"
	EventRelevance EventType = "relevance"
	EventRetry     EventType = "retry"
)

type Phase string

const (
	PhaseIntent    Phase = "intent"
	PhaseSearch    Phase = "search"
	PhaseRelevance Phase = "relevance"
	PhaseCompose   Phase = "compose"
)

type StatusEvent struct {
	Phase   Phase  `json:"phase"`
	Message string `json:"message,omitempty"`
}

type IntentEvent struct {
	Intent Intent `json:"intent"`
}

type CitationsEvent struct {
	Hits         []SearchHit `json:"hits"`
	Total        int         `json:"total"`
	SearchTookMs int64       `json:"search_took_ms"`
}

type RelevanceEvent struct {
	MaxScore  float64 `json:"max_score"`
	Evaluated int     `json:"evaluated"`
}

type RetryEvent struct {
	Attempt          int     `json:"attempt"`
	Reason           string  `json:"reason"`
	Query            string  `json:"query"`
	PreviousMaxScore float64 `json:"previous_max_score"`
}

// Event is a tagged union: Type selects which payload pointer is set.
// AgentID/AgentName are filled only when multiple search agents run.
type Event struct {
	Type      EventType       `json:"type"`
	AgentID   string          `json:"agent_id,omitempty"`
	AgentName string          `json:"agent_name,omitempty"`
	Status    *StatusEvent    `json:"status,omitempty"`
	Intent    *IntentEvent    `json:"intent,omitempty"`
	Citations *CitationsEvent `json:"citations,omitempty"`
	Relevance *RelevanceEvent `json:"relevance,omitempty"`
	Retry     *RetryEvent     `json:"retry,omitempty"`
}

// EventSink receives progress events in emission order. Implementations
// must be safe for use from a single goroutine; fan-in across agents is
// the emitter's responsibility.
type EventSink func(Event)

func StatusOf(phase Phase, message string) Event {
	return Event{Type: EventStatus, Status: &StatusEvent{Phase: phase, Message: message}}
}

func IntentOf(intent Intent) Event {
	return Event{Type: EventIntent, Intent: &IntentEvent{Intent: intent}}
}

func CitationsOf(hits []SearchHit, total int, searchTookMs int64) Event {
	return Event{Type: EventCitations, Citations: &CitationsEvent{Hits: hits, Total: total, SearchTookMs: searchTookMs}}
}

func RelevanceOf(maxScore float64, evaluated int) Event {
	return Event{Type: EventRelevance, Relevance: &RelevanceEvent{MaxScore: maxScore, Evaluated: evaluated}}
}

func RetryOf(attempt int, reason, query string, previousMaxScore float64) Event {
	return Event{Type: EventRetry, Retry: &RetryEvent{Attempt: attempt, Reason: reason, Query: query, PreviousMaxScore: previousMaxScore}}
}
