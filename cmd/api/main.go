package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/avoskres/assisted-search/internal/adapters/http"
	"github.com/avoskres/assisted-search/internal/bootstrap"
	"github.com/avoskres/assisted-search/internal/config"
	"github.com/avoskres/assisted-search/internal/observability/logging"
	"github.com/avoskres/assisted-search/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("assisted-search-api", cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid_configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.WarmupEnabled {
		go func() {
			warmupCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
			defer cancel()
			if err := app.LLM.Warmup(warmupCtx); err != nil {
				logger.Warn("model_warmup_failed", slog.String("error", err.Error()))
				return
			}
			logger.Info("model_warmup_done", slog.String("model", app.Models.ActiveModel()))
		}()
	}

	m := metrics.NewHTTPServerMetrics("assisted-search-api")
	router := httpadapter.NewRouter(
		app.Assistant,
		app.Models,
		app.Search,
		app.LLM,
		m,
		httpadapter.RouterConfig{
			AuthToken:          cfg.AuthToken,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			RateLimitRPS:       cfg.APIRateLimitRPS,
			RateLimitBurst:     cfg.APIRateLimitBurst,
			MaxConcurrent:      cfg.APIMaxConcurrent,
			BackpressureWait:   time.Duration(cfg.APIBackpressureWaitMs) * time.Millisecond,
			RequestTimeout:     cfg.RequestTimeout(),
		},
		logger,
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", slog.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api_server_failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", slog.String("error", err.Error()))
	}
}
