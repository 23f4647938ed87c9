package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

type assistQueryRequest struct {
	SessionID string               `json:"session_id,omitempty"`
	Query     string               `json:"query"`
	Language  string               `json:"language,omitempty"`
	Filters   domain.SearchFilters `json:"filters,omitempty"`
}

func (req assistQueryRequest) toDomain() domain.AssistRequest {
	return domain.AssistRequest{
		SessionID: req.SessionID,
		Query:     req.Query,
		Language:  req.Language,
		Filters:   req.Filters,
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	type componentStatus struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	ctx, cancel := contextWithTimeout(r, 5*time.Second)
	defer cancel()

	components := map[string]componentStatus{}
	overall := "ok"

	if err := rt.search.Health(ctx); err != nil {
		components["search"] = componentStatus{Status: "down", Error: err.Error()}
		overall = "degraded"
	} else {
		components["search"] = componentStatus{Status: "ok"}
	}

	if err := rt.llm.Health(ctx); err != nil {
		components["llm"] = componentStatus{Status: "down", Error: err.Error()}
		overall = "degraded"
	} else {
		components["llm"] = componentStatus{Status: "ok"}
	}

	status := http.StatusOK
	if overall != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":     overall,
		"components": components,
	})
}

func (rt *Router) assistQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req assistQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "assist query", fmt.Errorf("invalid json body")))
		return
	}

	ctx, cancel := contextWithTimeout(r, rt.cfg.RequestTimeout)
	defer cancel()

	started := time.Now()
	answer, err := rt.assistant.Query(ctx, req.toDomain())
	if err != nil {
		rt.metrics.RecordAssistRequest(serviceName, "query", "error", time.Since(started))
		writeError(w, r, err)
		return
	}

	rt.metrics.RecordAssistRequest(serviceName, "query", "success", time.Since(started))
	rt.metrics.RecordRetrieval(serviceName, "query", answer)
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) assistStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req assistQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "assist stream", fmt.Errorf("invalid json body")))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "assist stream", fmt.Errorf("query is required")))
		return
	}

	stream, err := newSSEWriter(w)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := contextWithTimeout(r, rt.cfg.RequestTimeout)
	defer cancel()

	requestID := requestIDFromContext(r.Context())
	_ = stream.send("start", map[string]string{"request_id": requestID})

	sink := func(ev domain.Event) {
		_ = stream.send(string(ev.Type), ev)
	}

	chunks := 0
	onChunk := func(fragment string) error {
		chunks++
		return stream.send("chunk", map[string]string{"text": fragment})
	}

	started := time.Now()
	answer, err := rt.assistant.Stream(ctx, req.toDomain(), sink, onChunk)
	if err != nil {
		rt.metrics.RecordAssistRequest(serviceName, "stream", "error", time.Since(started))
		_, code := mapErrorToHTTPStatus(err)
		_ = stream.send("error", errorBody{Code: code, Message: err.Error(), RequestID: requestID})
		return
	}

	rt.metrics.RecordAssistRequest(serviceName, "stream", "success", time.Since(started))
	rt.metrics.RecordRetrieval(serviceName, "stream", answer)
	rt.metrics.RecordStreamChunks(serviceName, chunks)
	_ = stream.send("complete", answer)
}

func (rt *Router) assistFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var fb domain.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "assist feedback", fmt.Errorf("invalid json body")))
		return
	}

	if err := rt.assistant.Feedback(r.Context(), fb); err != nil {
		writeError(w, r, err)
		return
	}

	rt.metrics.RecordFeedback(serviceName, fb.Rating)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (rt *Router) listModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	ctx, cancel := contextWithTimeout(r, 10*time.Second)
	defer cancel()

	names, err := rt.models.ListModels(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": names,
		"active": rt.models.ActiveModel(),
	})
}

func (rt *Router) selectModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "select model", fmt.Errorf("invalid json body")))
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "select model", fmt.Errorf("model is required")))
		return
	}

	ctx, cancel := contextWithTimeout(r, 10*time.Second)
	defer cancel()

	if err := rt.models.SelectModel(ctx, req.Model); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": rt.models.ActiveModel()})
}

func contextWithTimeout(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}
