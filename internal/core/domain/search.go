package domain

type SortOrder string

const (
	SortRelevance SortOrder = "relevance"
	SortDateDesc  SortOrder = "date_desc"
	SortDateAsc   SortOrder = "date_asc"
)

type SearchFilters struct {
	Site         string `json:"site,omitempty" yaml:"site,omitempty"`
	MimeType     string `json:"mimetype,omitempty" yaml:"mimetype,omitempty"`
	UpdatedAfter string `json:"updated_after,omitempty" yaml:"updated_after,omitempty"`
}

func (f SearchFilters) IsZero() bool {
	return f.Site == "" && f.MimeType == "" && f.UpdatedAfter == ""
}

type SearchQuery struct {
	Query   string
	Start   int
	Size    int
	Sort    SortOrder
	Filters SearchFilters
}

type HitMeta struct {
	Site        string `json:"site,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// SearchHit is one normalized document from the search backend.
// RelevanceScore is nil until the relevance stage has judged the hit.
type SearchHit struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	Snippet         string   `json:"snippet,omitempty"`
	Score           *float64 `json:"score,omitempty"`
	RelevanceScore  *float64 `json:"relevance_score,omitempty"`
	RelevanceReason string   `json:"relevance_reason,omitempty"`
	Meta            HitMeta  `json:"meta"`
}

type SearchPage struct {
	Hits   []SearchHit `json:"hits"`
	Total  int         `json:"total"`
	TookMs int64       `json:"took_ms"`
}
