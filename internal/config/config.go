package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string

	AuthToken          string
	CORSAllowedOrigins string

	APIRateLimitRPS       float64
	APIRateLimitBurst     int
	APIMaxConcurrent      int
	APIBackpressureWaitMs int

	FessURL        string
	FessSearchSize int

	OllamaURL   string
	OllamaModel string

	ReqTimeoutMs int

	RelevanceStrategy        string
	RelevanceThreshold       float64
	RelevanceMaxConcurrent   int
	RelevanceEvaluationCount int

	MaxRetries int

	DefaultLanguage     string
	SessionHistoryLimit int

	WarmupEnabled bool

	MultiAgentEnabled bool
	AgentsJSON        string
	AgentsFile        string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		AuthToken:          mustEnv("API_AUTH_TOKEN", ""),
		CORSAllowedOrigins: mustEnv("CORS_ALLOWED_ORIGINS", ""),

		APIRateLimitRPS:       mustEnvFloat("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst:     mustEnvInt("API_RATE_LIMIT_BURST", 10),
		APIMaxConcurrent:      mustEnvInt("API_MAX_CONCURRENT", 0),
		APIBackpressureWaitMs: mustEnvInt("API_BACKPRESSURE_WAIT_MS", 50),

		FessURL:        mustEnv("FESS_URL", "http://localhost:8080/fess"),
		FessSearchSize: mustEnvInt("FESS_SEARCH_SIZE", 10),

		OllamaURL:   mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: mustEnv("OLLAMA_MODEL", "qwen2.5:7b-instruct"),

		ReqTimeoutMs: mustEnvInt("REQ_TIMEOUT_MS", 15000),

		RelevanceStrategy:        mustEnv("RELEVANCE_STRATEGY", "heuristic"),
		RelevanceThreshold:       mustEnvFloat("RELEVANCE_THRESHOLD", 0.3),
		RelevanceMaxConcurrent:   mustEnvInt("RELEVANCE_MAX_CONCURRENT", 5),
		RelevanceEvaluationCount: mustEnvInt("RELEVANCE_EVALUATION_COUNT", 10),

		MaxRetries: mustEnvInt("SEARCH_MAX_RETRIES", 2),

		DefaultLanguage:     mustEnv("DEFAULT_LANGUAGE", "en"),
		SessionHistoryLimit: mustEnvInt("SESSION_HISTORY_LIMIT", 10),

		WarmupEnabled: mustEnvBool("WARMUP_ENABLED", true),

		MultiAgentEnabled: mustEnvBool("MULTI_AGENT_ENABLED", false),
		AgentsJSON:        mustEnv("SEARCH_AGENTS", ""),
		AgentsFile:        mustEnv("SEARCH_AGENTS_FILE", ""),
	}
}

const minAuthTokenLength = 32

// Validate rejects configurations that would weaken the API surface.
// An empty auth token disables authentication and is allowed.
func (c Config) Validate() error {
	if c.AuthToken != "" && len(c.AuthToken) < minAuthTokenLength {
		return fmt.Errorf("API_AUTH_TOKEN must be at least %d characters, got %d", minAuthTokenLength, len(c.AuthToken))
	}
	if c.ReqTimeoutMs <= 0 {
		return fmt.Errorf("REQ_TIMEOUT_MS must be positive, got %d", c.ReqTimeoutMs)
	}
	if c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		return fmt.Errorf("RELEVANCE_THRESHOLD must be within [0,1], got %g", c.RelevanceThreshold)
	}
	return nil
}

// The request budget splits into fixed shares per pipeline stage. The
// retry share is budgeted separately so a retry cannot starve the final
// compose stage.
const (
	intentShare    = 0.20
	searchShare    = 0.15
	relevanceShare = 0.25
	retryShare     = 0.20
	composeShare   = 0.15

	retryIntentShare    = 0.40
	retrySearchShare    = 0.40
	retryRelevanceShare = 0.20
)

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.ReqTimeoutMs) * time.Millisecond
}

func (c Config) IntentTimeout() time.Duration {
	return c.share(intentShare)
}

func (c Config) SearchTimeout() time.Duration {
	return c.share(searchShare)
}

func (c Config) RelevanceBudget() time.Duration {
	return c.share(relevanceShare)
}

func (c Config) ComposeTimeout() time.Duration {
	return c.share(composeShare)
}

func (c Config) RetryIntentTimeout() time.Duration {
	return c.retryShare(retryIntentShare)
}

func (c Config) RetrySearchTimeout() time.Duration {
	return c.retryShare(retrySearchShare)
}

func (c Config) RetryRelevanceBudget() time.Duration {
	return c.retryShare(retryRelevanceShare)
}

func (c Config) share(fraction float64) time.Duration {
	return time.Duration(float64(c.RequestTimeout()) * fraction)
}

func (c Config) retryShare(fraction float64) time.Duration {
	return time.Duration(float64(c.RequestTimeout()) * retryShare * fraction)
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
