package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/avoskres/assisted-search/internal/config"
	"github.com/avoskres/assisted-search/internal/core/agent"
	"github.com/avoskres/assisted-search/internal/core/ports"
	"github.com/avoskres/assisted-search/internal/core/scoring"
	"github.com/avoskres/assisted-search/internal/core/usecase"
	"github.com/avoskres/assisted-search/internal/infrastructure/llm/ollama"
	"github.com/avoskres/assisted-search/internal/infrastructure/resilience"
	"github.com/avoskres/assisted-search/internal/infrastructure/search/fess"
)

type App struct {
	Config config.Config

	Assistant ports.Assistant
	Models    ports.ModelCatalog
	Search    ports.SearchProvider
	LLM       ports.LLMRuntime
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	searchExec := resilience.NewExecutor(resilience.DefaultConfig())
	llmExec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: 2,
		BreakerEnabled:   true,
	})

	searchProvider := fess.New(cfg.FessURL, searchExec)
	llmClient := ollama.New(cfg.OllamaURL, cfg.OllamaModel, llmExec)

	intents := ollama.NewIntentExtractor(llmClient)
	composer := ollama.NewComposer(llmClient, logger)

	scorer, err := buildScorer(cfg, llmClient, logger)
	if err != nil {
		return nil, err
	}
	evaluator := agent.NewBatchEvaluator(scorer, cfg.RelevanceMaxConcurrent, cfg.RelevanceEvaluationCount, logger)

	loop := agent.NewLoop(searchProvider, intents, evaluator, agent.LoopConfig{
		RelevanceThreshold: cfg.RelevanceThreshold,
		MaxRetries:         cfg.MaxRetries,
		SearchSize:         cfg.FessSearchSize,

		IntentTimeout:   cfg.IntentTimeout(),
		SearchTimeout:   cfg.SearchTimeout(),
		RelevanceBudget: cfg.RelevanceBudget(),

		RetryIntentTimeout:   cfg.RetryIntentTimeout(),
		RetrySearchTimeout:   cfg.RetrySearchTimeout(),
		RetryRelevanceBudget: cfg.RetryRelevanceBudget(),
	}, logger)

	runner, err := buildRunner(cfg, loop, llmClient, logger)
	if err != nil {
		return nil, err
	}

	sessions := usecase.NewSessionStore(cfg.SessionHistoryLimit)
	assistant := usecase.NewAssistService(runner, composer, sessions, cfg.DefaultLanguage, cfg.ComposeTimeout(), logger)

	return &App{
		Config:    cfg,
		Assistant: assistant,
		Models:    llmClient,
		Search:    searchProvider,
		LLM:       llmClient,
	}, nil
}

func buildScorer(cfg config.Config, client *ollama.Client, logger *slog.Logger) (ports.RelevanceScorer, error) {
	switch cfg.RelevanceStrategy {
	case "", "heuristic":
		return scoring.NewHeuristic(), nil
	case "llm":
		return ollama.NewRelevanceJudge(client, logger), nil
	default:
		return nil, fmt.Errorf("unknown relevance strategy %q", cfg.RelevanceStrategy)
	}
}

// buildRunner assembles the retrieval side: one loop agent per roster
// entry, merged behind a single decision step when multi-agent mode is
// on, a bare loop agent otherwise.
func buildRunner(cfg config.Config, loop *agent.Loop, client *ollama.Client, logger *slog.Logger) (usecase.RetrievalRunner, error) {
	roster, err := cfg.AgentRoster()
	if err != nil {
		return nil, err
	}

	if !cfg.MultiAgentEnabled || len(roster) == 1 {
		return agent.NewLoopAgent(roster[0], loop), nil
	}

	agents := make([]ports.SearchAgent, 0, len(roster))
	for _, descriptor := range roster {
		agents = append(agents, agent.NewLoopAgent(descriptor, loop))
	}
	advisor := ollama.NewMergeAdvisor(client)
	return agent.NewMerger(agents, advisor, 5*time.Second, logger), nil
}
