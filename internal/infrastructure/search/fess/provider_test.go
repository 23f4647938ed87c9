package fess

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avoskres/assisted-search/internal/core/domain"
	"github.com/avoskres/assisted-search/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: 1,
		BreakerEnabled:   false,
	})
}

func TestSearchBuildsQueryWithFiltersAndSort(t *testing.T) {
	var capturedQuery, capturedSort, capturedNum string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/documents" {
			http.NotFound(w, r)
			return
		}
		capturedQuery = r.URL.Query().Get("q")
		capturedSort = r.URL.Query().Get("sort")
		capturedNum = r.URL.Query().Get("num")
		_, _ = w.Write([]byte(`{"record_count":0,"exec_time":0.01,"data":[]}`))
	}))
	defer server.Close()

	provider := New(server.URL, testExecutor())
	_, err := provider.Search(context.Background(), domain.SearchQuery{
		Query: "vpn setup",
		Size:  5,
		Sort:  domain.SortDateDesc,
		Filters: domain.SearchFilters{
			Site:         "wiki.internal",
			MimeType:     "application/pdf",
			UpdatedAfter: "2025-01-01",
		},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, part := range []string{"vpn setup", "site:wiki.internal", "mimetype:application/pdf", "last_modified:[2025-01-01 TO *]"} {
		if !strings.Contains(capturedQuery, part) {
			t.Fatalf("expected %q in query, got %q", part, capturedQuery)
		}
	}
	if capturedSort != "last_modified.desc" {
		t.Fatalf("expected date sort, got %q", capturedSort)
	}
	if capturedNum != "5" {
		t.Fatalf("expected num=5, got %q", capturedNum)
	}
}

func TestSearchNormalizesDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"record_count": 42,
			"exec_time": 0.131,
			"data": [
				{"doc_id":"d1","title":"First","url":"https://a/1","content_description":"snippet one","mimetype":"text/html","last_modified":"2025-03-01","score":1.5},
				{"id":"d2","title":"Second","url":"https://a/2","digest":"snippet two"},
				{"url":"https://a/3"},
				{"title":""}
			]
		}`))
	}))
	defer server.Close()

	provider := New(server.URL, testExecutor())
	page, err := provider.Search(context.Background(), domain.SearchQuery{Query: "q"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if page.Total != 42 {
		t.Fatalf("expected total 42, got %d", page.Total)
	}
	if page.TookMs != 131 {
		t.Fatalf("expected 131ms, got %d", page.TookMs)
	}
	if len(page.Hits) != 4 {
		t.Fatalf("expected 4 hits, got %d", len(page.Hits))
	}

	first := page.Hits[0]
	if first.ID != "d1" || first.Snippet != "snippet one" || first.Meta.ContentType != "text/html" {
		t.Fatalf("unexpected first hit: %+v", first)
	}
	if first.Score == nil || *first.Score != 1.5 {
		t.Fatalf("expected backend score 1.5, got %v", first.Score)
	}

	if page.Hits[1].ID != "d2" || page.Hits[1].Snippet != "snippet two" {
		t.Fatalf("expected id and digest fallback, got %+v", page.Hits[1])
	}

	// url digest fallback: deterministic, 16 hex chars, title falls back to url
	third := page.Hits[2]
	if len(third.ID) != 16 {
		t.Fatalf("expected 16-char digest id, got %q", third.ID)
	}
	if third.Title != "https://a/3" {
		t.Fatalf("expected url title fallback, got %q", third.Title)
	}

	fourth := page.Hits[3]
	if !strings.HasPrefix(fourth.ID, "unknown-") {
		t.Fatalf("expected unknown- id fallback, got %q", fourth.ID)
	}
	if fourth.Title != "Document 4" {
		t.Fatalf("expected positional title fallback, got %q", fourth.Title)
	}
}

func TestSearchIDFallbackDeterministic(t *testing.T) {
	raw := map[string]any{"url": "https://a/3", "title": "Same"}
	first := normalizeDocument(raw, 0)
	second := normalizeDocument(map[string]any{"url": "https://a/3", "title": "Same"}, 0)
	if first.ID != second.ID {
		t.Fatalf("expected deterministic ids, got %q vs %q", first.ID, second.ID)
	}
}

func TestSearchBackendFailureWrapsKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "index unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := New(server.URL, testExecutor())
	_, err := provider.Search(context.Background(), domain.SearchQuery{Query: "q"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrSearchBackend) {
		t.Fatalf("expected search backend kind, got %v", err)
	}
	if !strings.Contains(err.Error(), "index unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	provider := New("http://localhost:1", testExecutor())
	_, err := provider.Search(context.Background(), domain.SearchQuery{Query: "  "})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestHealthStates(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		status  int
		wantErr bool
	}{
		{name: "green", body: `{"data":{"status":"green","timed_out":false}}`, status: http.StatusOK, wantErr: false},
		{name: "yellow", body: `{"data":{"status":"yellow","timed_out":false}}`, status: http.StatusOK, wantErr: false},
		{name: "red", body: `{"data":{"status":"red","timed_out":false}}`, status: http.StatusOK, wantErr: true},
		{name: "timed out", body: `{"data":{"status":"green","timed_out":true}}`, status: http.StatusOK, wantErr: true},
		{name: "http error", body: `boom`, status: http.StatusInternalServerError, wantErr: true},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		provider := New(server.URL, testExecutor())
		err := provider.Health(context.Background())
		server.Close()
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}
