package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/avoskres/assisted-search/internal/core/ports"
	"github.com/avoskres/assisted-search/internal/observability/metrics"
)

const serviceName = "assisted-search-api"

type RouterConfig struct {
	AuthToken          string
	CORSAllowedOrigins string
	RateLimitRPS       float64
	RateLimitBurst     int
	MaxConcurrent      int
	BackpressureWait   time.Duration
	RequestTimeout     time.Duration
}

type Router struct {
	assistant ports.Assistant
	models    ports.ModelCatalog
	search    ports.SearchProvider
	llm       ports.LLMRuntime
	metrics   *metrics.HTTPServerMetrics
	cfg       RouterConfig
	logger    *slog.Logger
}

func NewRouter(
	assistant ports.Assistant,
	models ports.ModelCatalog,
	search ports.SearchProvider,
	llm ports.LLMRuntime,
	m *metrics.HTTPServerMetrics,
	cfg RouterConfig,
	logger *slog.Logger,
) *Router {
	return &Router{
		assistant: assistant,
		models:    models,
		search:    search,
		llm:       llm,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/api/v1/health", rt.health)
	mux.HandleFunc("/api/v1/assist/query", rt.assistQuery)
	mux.HandleFunc("/api/v1/assist/stream", rt.assistStream)
	mux.HandleFunc("/api/v1/assist/feedback", rt.assistFeedback)
	mux.HandleFunc("/api/v1/models", rt.listModels)
	mux.HandleFunc("/api/v1/models/select", rt.selectModel)
	mux.Handle("/metrics", rt.metrics.Handler())

	var handler http.Handler = mux
	if rt.cfg.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	}
	if rt.cfg.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.MaxConcurrent, rt.cfg.BackpressureWait)
	}
	handler = rt.authMiddleware(handler)
	handler = corsMiddleware(handler, rt.cfg.CORSAllowedOrigins)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
