// Package fess adapts the Fess full-text search HTTP API to the
// SearchProvider port.
package fess

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avoskres/assisted-search/internal/core/domain"
	"github.com/avoskres/assisted-search/internal/infrastructure/resilience"
)

const defaultPageSize = 10

type Provider struct {
	baseURL    string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL string, exec *resilience.Executor) *Provider {
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		exec:       exec,
	}
}

type searchResponse struct {
	RecordCount int              `json:"record_count"`
	ExecTime    float64          `json:"exec_time"`
	Data        []map[string]any `json:"data"`
}

func (p *Provider) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchPage, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fess search", fmt.Errorf("query is required"))
	}
	size := q.Size
	if size <= 0 {
		size = defaultPageSize
	}

	params := url.Values{}
	params.Set("q", buildQueryString(q))
	params.Set("start", strconv.Itoa(q.Start))
	params.Set("num", strconv.Itoa(size))
	if sort := sortParam(q.Sort); sort != "" {
		params.Set("sort", sort)
	}

	var response searchResponse
	err := p.exec.Execute(ctx, "fess.search", func(ctx context.Context) error {
		return p.getJSON(ctx, "/api/v1/documents?"+params.Encode(), &response)
	}, classifyFessError)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSearchBackend, "fess search", err)
	}

	page := &domain.SearchPage{
		Hits:   make([]domain.SearchHit, 0, len(response.Data)),
		Total:  response.RecordCount,
		TookMs: int64(response.ExecTime * 1000),
	}
	for idx, raw := range response.Data {
		page.Hits = append(page.Hits, normalizeDocument(raw, idx))
	}
	return page, nil
}

func (p *Provider) Health(ctx context.Context) error {
	var response struct {
		Data struct {
			Status   string `json:"status"`
			TimedOut bool   `json:"timed_out"`
		} `json:"data"`
	}
	if err := p.getJSON(ctx, "/api/v1/health", &response); err != nil {
		return domain.WrapError(domain.ErrSearchBackend, "fess health", err)
	}
	if response.Data.Status == "red" || response.Data.TimedOut {
		return domain.WrapError(domain.ErrSearchBackend, "fess health",
			fmt.Errorf("cluster status %q, timed_out=%t", response.Data.Status, response.Data.TimedOut))
	}
	return nil
}

// buildQueryString appends filter clauses to the user query in Fess
// query syntax.
func buildQueryString(q domain.SearchQuery) string {
	parts := []string{q.Query}
	if q.Filters.Site != "" {
		parts = append(parts, "site:"+q.Filters.Site)
	}
	if q.Filters.MimeType != "" {
		parts = append(parts, "mimetype:"+q.Filters.MimeType)
	}
	if q.Filters.UpdatedAfter != "" {
		parts = append(parts, fmt.Sprintf("last_modified:[%s TO *]", q.Filters.UpdatedAfter))
	}
	return strings.Join(parts, " ")
}

func sortParam(order domain.SortOrder) string {
	switch order {
	case domain.SortDateDesc:
		return "last_modified.desc"
	case domain.SortDateAsc:
		return "last_modified.asc"
	case domain.SortRelevance:
		return "score.desc"
	default:
		return ""
	}
}

// normalizeDocument maps a raw Fess document to a SearchHit. The id
// fallback chain keeps ids deterministic for identical input documents:
// doc_id, then id, then a url digest, then a digest of the whole record.
func normalizeDocument(raw map[string]any, index int) domain.SearchHit {
	docURL := stringField(raw, "url", "url_link")

	id := stringField(raw, "doc_id")
	if id == "" {
		id = stringField(raw, "id")
	}
	if id == "" && docURL != "" {
		id = shortDigest(docURL)
	}
	if id == "" {
		id = "unknown-" + shortDigest(canonicalJSON(raw))
	}

	title := stringField(raw, "title")
	if title == "" {
		title = docURL
	}
	if title == "" {
		title = fmt.Sprintf("Document %d", index+1)
	}

	hit := domain.SearchHit{
		ID:      id,
		Title:   title,
		URL:     docURL,
		Snippet: stringField(raw, "content_description", "digest"),
		Meta: domain.HitMeta{
			Site:        stringField(raw, "site"),
			ContentType: stringField(raw, "mimetype"),
			UpdatedAt:   stringField(raw, "last_modified"),
		},
	}
	if score, ok := raw["score"].(float64); ok {
		hit.Score = &score
	}
	return hit
}

func stringField(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func shortDigest(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}

// canonicalJSON is deterministic for map input: encoding/json sorts
// object keys.
func canonicalJSON(raw map[string]any) string {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Sprintf("%v", raw)
	}
	return string(encoded)
}
