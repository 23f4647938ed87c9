package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avoskres/assisted-search/internal/core/domain"
	"github.com/avoskres/assisted-search/internal/observability/metrics"
)

type assistantFake struct {
	answer    *domain.AssistAnswer
	err       error
	fragments []string
	events    []domain.Event
	feedback  []domain.Feedback
}

func (f *assistantFake) Query(context.Context, domain.AssistRequest) (*domain.AssistAnswer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func (f *assistantFake) Stream(_ context.Context, _ domain.AssistRequest, sink domain.EventSink, onChunk func(string) error) (*domain.AssistAnswer, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, ev := range f.events {
		sink(ev)
	}
	for _, fragment := range f.fragments {
		if err := onChunk(fragment); err != nil {
			return nil, err
		}
	}
	return f.answer, nil
}

func (f *assistantFake) Feedback(_ context.Context, fb domain.Feedback) error {
	if f.err != nil {
		return f.err
	}
	f.feedback = append(f.feedback, fb)
	return nil
}

type catalogFake struct {
	models []string
	active string
	err    error
}

func (f *catalogFake) ListModels(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.models, nil
}

func (f *catalogFake) ActiveModel() string { return f.active }

func (f *catalogFake) SelectModel(_ context.Context, name string) error {
	if f.err != nil {
		return f.err
	}
	f.active = name
	return nil
}

type searchHealthFake struct{ err error }

func (f searchHealthFake) Search(context.Context, domain.SearchQuery) (*domain.SearchPage, error) {
	return &domain.SearchPage{}, nil
}

func (f searchHealthFake) Health(context.Context) error { return f.err }

type llmHealthFake struct{ err error }

func (f llmHealthFake) Health(context.Context) error { return f.err }
func (f llmHealthFake) Warmup(context.Context) error { return nil }

func answerFixture() *domain.AssistAnswer {
	score := 0.8
	return &domain.AssistAnswer{
		Text: "Weekly backups are required.",
		Citations: []domain.Citation{
			{ID: 1, Title: "Backup Policy", URL: "https://docs.example.com/backup", Score: &score},
		},
		Total:    1,
		MaxScore: 0.8,
		Session:  domain.Session{ID: "s-1", Turn: 1},
	}
}

func newTestHandler(assistant *assistantFake, cfg RouterConfig) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(
		assistant,
		&catalogFake{models: []string{"qwen2.5:7b-instruct"}, active: "qwen2.5:7b-instruct"},
		searchHealthFake{},
		llmHealthFake{},
		metrics.NewHTTPServerMetrics(serviceName),
		cfg,
		logger,
	).Handler()
}

func postJSONRequest(path string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAssistQueryReturnsAnswer(t *testing.T) {
	handler := newTestHandler(&assistantFake{answer: answerFixture()}, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, postJSONRequest("/api/v1/assist/query", map[string]string{"query": "backup policy"}))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var answer domain.AssistAnswer
	if err := json.NewDecoder(res.Body).Decode(&answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.Text == "" || len(answer.Citations) != 1 {
		t.Fatalf("unexpected answer: %+v", answer)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestAssistQueryRejectsInvalidJSON(t *testing.T) {
	handler := newTestHandler(&assistantFake{answer: answerFixture()}, RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assist/query", strings.NewReader("{not json"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	var body errorBody
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Code != "INVALID_QUERY" {
		t.Fatalf("expected INVALID_QUERY code, got %q", body.Code)
	}
}

func TestAssistStreamEmitsFrames(t *testing.T) {
	assistant := &assistantFake{
		answer:    answerFixture(),
		fragments: []string{"Weekly backups ", "are required."},
		events: []domain.Event{
			domain.StatusOf(domain.PhaseIntent, "Analyzing your question..."),
			domain.CitationsOf(nil, 1, 12),
		},
	}
	handler := newTestHandler(assistant, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, postJSONRequest("/api/v1/assist/stream", map[string]string{"query": "backup policy"}))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream content type, got %q", ct)
	}

	body := res.Body.String()
	for _, frame := range []string{"event: start", "event: status", "event: citations", "event: chunk", "event: complete"} {
		if !strings.Contains(body, frame) {
			t.Fatalf("expected %q frame in stream, got:\n%s", frame, body)
		}
	}
	if strings.Count(body, "event: chunk") != 2 {
		t.Fatalf("expected 2 chunk frames, got:\n%s", body)
	}
}

func TestAssistStreamSendsErrorFrame(t *testing.T) {
	backendErr := domain.WrapError(domain.ErrSearchBackend, "fess search", io.ErrUnexpectedEOF)
	handler := newTestHandler(&assistantFake{err: backendErr}, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, postJSONRequest("/api/v1/assist/stream", map[string]string{"query": "backup policy"}))

	if res.Code != http.StatusOK {
		t.Fatalf("stream errors arrive as frames, expected 200, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, "event: error") || !strings.Contains(body, "UPSTREAM_SEARCH_ERROR") {
		t.Fatalf("expected error frame with upstream code, got:\n%s", body)
	}
}

func TestAssistFeedbackAccepted(t *testing.T) {
	assistant := &assistantFake{}
	handler := newTestHandler(assistant, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, postJSONRequest("/api/v1/assist/feedback", map[string]any{
		"session_id": "s-1",
		"turn":       1,
		"rating":     "up",
	}))

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if len(assistant.feedback) != 1 || assistant.feedback[0].Rating != domain.FeedbackUp {
		t.Fatalf("expected feedback recorded, got %+v", assistant.feedback)
	}
}

func TestListAndSelectModels(t *testing.T) {
	handler := newTestHandler(&assistantFake{}, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/models", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var listed struct {
		Models []string `json:"models"`
		Active string   `json:"active"`
	}
	if err := json.NewDecoder(res.Body).Decode(&listed); err != nil {
		t.Fatalf("decode models: %v", err)
	}
	if len(listed.Models) != 1 || listed.Active != "qwen2.5:7b-instruct" {
		t.Fatalf("unexpected models response: %+v", listed)
	}

	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, postJSONRequest("/api/v1/models/select", map[string]string{"model": "qwen2.5:7b-instruct"}))
	if res2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res2.Code)
	}
}

func TestBearerAuthGuardsAPIRoutes(t *testing.T) {
	token := strings.Repeat("s", 64)
	handler := newTestHandler(&assistantFake{answer: answerFixture()}, RouterConfig{AuthToken: token})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, postJSONRequest("/api/v1/assist/query", map[string]string{"query": "backup policy"}))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}

	req := postJSONRequest("/api/v1/assist/query", map[string]string{"query": "backup policy"})
	req.Header.Set("Authorization", "Bearer "+token)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req)
	if res2.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", res2.Code)
	}

	res3 := httptest.NewRecorder()
	handler.ServeHTTP(res3, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res3.Code != http.StatusOK {
		t.Fatalf("healthz must stay unauthenticated, got %d", res3.Code)
	}
}

func TestCORSHeadersForAllowedOrigin(t *testing.T) {
	handler := newTestHandler(&assistantFake{answer: answerFixture()}, RouterConfig{
		CORSAllowedOrigins: "https://portal.example.com",
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/assist/query", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", res.Code)
	}
	if res.Header().Get("Access-Control-Allow-Origin") != "https://portal.example.com" {
		t.Fatalf("expected origin echoed, got %q", res.Header().Get("Access-Control-Allow-Origin"))
	}

	req2 := httptest.NewRequest(http.MethodOptions, "/api/v1/assist/query", nil)
	req2.Header.Set("Origin", "https://evil.example.com")
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unexpected CORS header for disallowed origin")
	}
}

func TestHealthReportsComponentStatus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewRouter(
		&assistantFake{},
		&catalogFake{},
		searchHealthFake{err: io.ErrUnexpectedEOF},
		llmHealthFake{},
		metrics.NewHTTPServerMetrics(serviceName),
		RouterConfig{},
		logger,
	).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with failing search backend, got %d", res.Code)
	}
	var body struct {
		Status     string                       `json:"status"`
		Components map[string]map[string]string `json:"components"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if body.Status != "degraded" {
		t.Fatalf("expected degraded status, got %q", body.Status)
	}
	if body.Components["search"]["status"] != "down" || body.Components["llm"]["status"] != "ok" {
		t.Fatalf("unexpected component statuses: %+v", body.Components)
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	handler := newTestHandler(&assistantFake{}, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics endpoint, got %d", res.Code)
	}
}
