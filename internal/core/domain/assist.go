package domain

type NoticeReason string

const (
	NoticeIntentFailed   NoticeReason = "INTENT_FAILED"
	NoticeLLMUnavailable NoticeReason = "LLM_UNAVAILABLE"
	NoticeBadOutput      NoticeReason = "BAD_OUTPUT"
)

// Notice tells the caller the answer was produced on a degraded path.
type Notice struct {
	Kind    string       `json:"kind"`
	Reason  NoticeReason `json:"reason"`
	Message string       `json:"message,omitempty"`
}

func FallbackNotice(reason NoticeReason, message string) *Notice {
	return &Notice{Kind: "fallback", Reason: reason, Message: message}
}

type AssistRequest struct {
	SessionID string
	Query     string
	Language  string
	Filters   SearchFilters
}

// Citation numbering is 1-based and stable within one answer.
type Citation struct {
	ID      int      `json:"id"`
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Snippet string   `json:"snippet,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}

type Session struct {
	ID   string `json:"id"`
	Turn int    `json:"turn"`
}

type Timings struct {
	LLMMs    int64 `json:"llm_ms"`
	SearchMs int64 `json:"search_ms"`
	TotalMs  int64 `json:"total_ms"`
}

type ComposedAnswer struct {
	Text               string   `json:"text"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
}

type AssistAnswer struct {
	Text               string     `json:"text"`
	SuggestedQuestions []string   `json:"suggested_questions,omitempty"`
	Citations          []Citation `json:"citations"`
	Total              int        `json:"total"`
	MaxScore           float64    `json:"max_score"`
	Retries            int        `json:"retries"`
	Session            Session    `json:"session"`
	Timings            Timings    `json:"timings"`
	Notice             *Notice    `json:"notice,omitempty"`
}

type FeedbackRating string

const (
	FeedbackUp   FeedbackRating = "up"
	FeedbackDown FeedbackRating = "down"
)

type Feedback struct {
	SessionID string         `json:"session_id"`
	Turn      int            `json:"turn"`
	Rating    FeedbackRating `json:"rating"`
	Comment   string         `json:"comment,omitempty"`
}
