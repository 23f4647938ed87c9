package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avoskres/assisted-search/internal/core/domain"
	"github.com/avoskres/assisted-search/internal/core/ports"
	"github.com/avoskres/assisted-search/internal/i18n"
)

const maxCitations = 10

// RetrievalRunner abstracts the retrieval pipeline. Both a single
// search agent and the multi-agent merger satisfy it.
type RetrievalRunner interface {
	Run(ctx context.Context, req domain.RetrievalRequest, sink domain.EventSink) (*domain.RetrievalOutcome, error)
}

type AssistService struct {
	runner          RetrievalRunner
	composer        ports.AnswerComposer
	sessions        *SessionStore
	defaultLanguage string
	composeTimeout  time.Duration
	logger          *slog.Logger
}

func NewAssistService(
	runner RetrievalRunner,
	composer ports.AnswerComposer,
	sessions *SessionStore,
	defaultLanguage string,
	composeTimeout time.Duration,
	logger *slog.Logger,
) *AssistService {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	if composeTimeout <= 0 {
		composeTimeout = 5 * time.Second
	}
	return &AssistService{
		runner:          runner,
		composer:        composer,
		sessions:        sessions,
		defaultLanguage: defaultLanguage,
		composeTimeout:  composeTimeout,
		logger:          logger,
	}
}

func (s *AssistService) Query(ctx context.Context, req domain.AssistRequest) (*domain.AssistAnswer, error) {
	started := time.Now()

	retrieval, session, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	outcome, err := s.runner.Run(ctx, retrieval, nil)
	if err != nil {
		return nil, err
	}

	answer := s.baseAnswer(outcome, session)

	if len(outcome.Hits) == 0 {
		answer.Text = i18n.Message(retrieval.Language, i18n.KeyNoResults)
		answer.SuggestedQuestions = outcome.Intent.Followups
		answer.Timings.TotalMs = time.Since(started).Milliseconds()
		return answer, nil
	}

	composeStarted := time.Now()
	composeCtx, cancel := context.WithTimeout(ctx, s.composeTimeout)
	composed, composeErr := s.composer.Compose(composeCtx, retrieval, outcome.Intent, citedHits(outcome.Hits))
	cancel()
	answer.Timings.LLMMs = time.Since(composeStarted).Milliseconds()

	if composeErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("answer_composition_degraded",
			slog.String("session_id", session.ID),
			slog.String("error", composeErr.Error()))
		answer.Text = fallbackAnswerText(retrieval.Language, outcome.Hits)
		answer.SuggestedQuestions = outcome.Intent.Followups
		if answer.Notice == nil {
			answer.Notice = composeNotice(composeErr)
		}
	} else {
		answer.Text = composed.Text
		answer.SuggestedQuestions = composed.SuggestedQuestions
	}

	answer.Timings.TotalMs = time.Since(started).Milliseconds()
	return answer, nil
}

func (s *AssistService) Stream(ctx context.Context, req domain.AssistRequest, sink domain.EventSink, onChunk func(string) error) (*domain.AssistAnswer, error) {
	started := time.Now()

	retrieval, session, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	outcome, err := s.runner.Run(ctx, retrieval, sink)
	if err != nil {
		return nil, err
	}

	answer := s.baseAnswer(outcome, session)
	answer.SuggestedQuestions = outcome.Intent.Followups

	if len(outcome.Hits) == 0 {
		text := i18n.Message(retrieval.Language, i18n.KeyNoResults)
		if err := onChunk(text); err != nil {
			return nil, err
		}
		answer.Text = text
		answer.Timings.TotalMs = time.Since(started).Milliseconds()
		return answer, nil
	}

	var assembled strings.Builder
	collect := func(fragment string) error {
		assembled.WriteString(fragment)
		return onChunk(fragment)
	}

	if sink != nil {
		sink(domain.StatusOf(domain.PhaseCompose, i18n.Message(retrieval.Language, i18n.KeyComposing)))
	}

	composeStarted := time.Now()
	composeCtx, cancel := context.WithTimeout(ctx, s.composeTimeout)
	composeErr := s.composer.ComposeStream(composeCtx, retrieval, outcome.Intent, citedHits(outcome.Hits), collect)
	cancel()
	answer.Timings.LLMMs = time.Since(composeStarted).Milliseconds()

	if composeErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, composeErr
	}

	answer.Text = assembled.String()
	answer.Timings.TotalMs = time.Since(started).Milliseconds()
	return answer, nil
}

func (s *AssistService) Feedback(_ context.Context, fb domain.Feedback) error {
	if strings.TrimSpace(fb.SessionID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "assist feedback", fmt.Errorf("session_id is required"))
	}
	if fb.Rating != domain.FeedbackUp && fb.Rating != domain.FeedbackDown {
		return domain.WrapError(domain.ErrInvalidInput, "assist feedback", fmt.Errorf("rating must be up or down"))
	}
	if fb.Turn < 1 {
		return domain.WrapError(domain.ErrInvalidInput, "assist feedback", fmt.Errorf("turn must be positive"))
	}

	s.logger.Info("feedback_received",
		slog.String("session_id", fb.SessionID),
		slog.Int("turn", fb.Turn),
		slog.String("rating", string(fb.Rating)),
		slog.Int("comment_length", len(fb.Comment)))
	return nil
}

func (s *AssistService) prepare(req domain.AssistRequest) (domain.RetrievalRequest, domain.Session, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return domain.RetrievalRequest{}, domain.Session{}, domain.WrapError(domain.ErrInvalidInput, "assist query", fmt.Errorf("query is required"))
	}

	language := req.Language
	if language == "" {
		language = s.defaultLanguage
	}

	session, history := s.sessions.Begin(req.SessionID, query)

	return domain.RetrievalRequest{
		Query:    query,
		Language: language,
		Filters:  req.Filters,
		History:  history,
	}, session, nil
}

func (s *AssistService) baseAnswer(outcome *domain.RetrievalOutcome, session domain.Session) *domain.AssistAnswer {
	return &domain.AssistAnswer{
		Citations: buildCitations(outcome.Hits),
		Total:     outcome.Total,
		MaxScore:  outcome.MaxScore,
		Retries:   outcome.Retries,
		Session:   session,
		Timings:   domain.Timings{SearchMs: outcome.SearchTookMs},
		Notice:    outcome.Notice,
	}
}

// citedHits limits the context passed to the composer to the hits that
// appear as citations, so citation markers stay resolvable.
func citedHits(hits []domain.SearchHit) []domain.SearchHit {
	if len(hits) <= maxCitations {
		return hits
	}
	return hits[:maxCitations]
}

func buildCitations(hits []domain.SearchHit) []domain.Citation {
	cited := citedHits(hits)
	citations := make([]domain.Citation, 0, len(cited))
	for i, hit := range cited {
		score := hit.RelevanceScore
		if score == nil {
			score = hit.Score
		}
		citations = append(citations, domain.Citation{
			ID:      i + 1,
			Title:   hit.Title,
			URL:     hit.URL,
			Snippet: hit.Snippet,
			Score:   score,
		})
	}
	return citations
}

func fallbackAnswerText(language string, hits []domain.SearchHit) string {
	var b strings.Builder
	b.WriteString(i18n.Message(language, i18n.KeySourcesFound))
	for i, hit := range citedHits(hits) {
		b.WriteString(fmt.Sprintf("\n[%d] %s", i+1, hit.Title))
	}
	return b.String()
}

func composeNotice(err error) *domain.Notice {
	if domain.IsKind(err, domain.ErrLLMUnavailable) {
		return domain.FallbackNotice(domain.NoticeLLMUnavailable, "answer generation unavailable, sources listed instead")
	}
	return domain.FallbackNotice(domain.NoticeBadOutput, "answer generation failed, sources listed instead")
}
