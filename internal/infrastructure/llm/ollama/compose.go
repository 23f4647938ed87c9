package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

type Composer struct {
	client *Client
	logger *slog.Logger
}

func NewComposer(client *Client, logger *slog.Logger) *Composer {
	return &Composer{client: client, logger: logger}
}

func (c *Composer) Compose(ctx context.Context, req domain.RetrievalRequest, _ domain.Intent, hits []domain.SearchHit) (domain.ComposedAnswer, error) {
	var payload domain.ComposedAnswer
	if err := c.client.structuredJSON(ctx, "compose", buildComposePrompt(req, hits), &payload, nil); err != nil {
		return domain.ComposedAnswer{}, err
	}
	if strings.TrimSpace(payload.Text) == "" {
		return domain.ComposedAnswer{}, fmt.Errorf("compose: empty answer text")
	}
	if len(payload.SuggestedQuestions) > 3 {
		payload.SuggestedQuestions = payload.SuggestedQuestions[:3]
	}
	return payload, nil
}

// ComposeStream forwards answer fragments as they arrive. A mid-stream
// failure is converted into one human-readable fragment and a clean stop:
// the consumer sees a terminated answer, never a broken connection.
func (c *Composer) ComposeStream(ctx context.Context, req domain.RetrievalRequest, _ domain.Intent, hits []domain.SearchHit, onChunk func(string) error) error {
	normalizer := newEnvelopeNormalizer(onChunk)
	err := c.client.generateStream(ctx, buildComposeStreamPrompt(req, hits), normalizer.feed)
	if err != nil {
		// caller cancellation propagates; a blown budget still ends the
		// answer with a readable fragment
		if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
			return err
		}
		c.logger.Warn("compose_stream_degraded", "error", err)
		msg := compactError(err)
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			msg = "response timeout"
		}
		return onChunk(fmt.Sprintf("[Error: answer generation failed: %s]", msg))
	}
	return normalizer.flush()
}

func compactError(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 && idx+2 < len(msg) {
		msg = msg[idx+2:]
	}
	if len(msg) > 120 {
		msg = msg[:120]
	}
	return msg
}

// envelopeNormalizer defends against models that ignore the plain-prose
// instruction and emit {"text": "..."} anyway. Prose passes through
// fragment by fragment; a stream that opens with "{" is buffered whole
// and unwrapped at the end.
type envelopeNormalizer struct {
	onChunk  func(string) error
	decided  bool
	buffered bool
	buf      strings.Builder
}

func newEnvelopeNormalizer(onChunk func(string) error) *envelopeNormalizer {
	return &envelopeNormalizer{onChunk: onChunk}
}

func (n *envelopeNormalizer) feed(fragment string) error {
	if !n.decided {
		trimmed := strings.TrimLeft(fragment, " \t\r\n")
		if trimmed == "" {
			n.buf.WriteString(fragment)
			return nil
		}
		n.decided = true
		n.buffered = strings.HasPrefix(trimmed, "{")
		if !n.buffered && n.buf.Len() > 0 {
			leading := n.buf.String()
			n.buf.Reset()
			if err := n.onChunk(leading); err != nil {
				return err
			}
		}
	}

	if n.buffered {
		n.buf.WriteString(fragment)
		return nil
	}
	return n.onChunk(fragment)
}

func (n *envelopeNormalizer) flush() error {
	if n.buf.Len() == 0 {
		return nil
	}
	raw := n.buf.String()
	n.buf.Reset()
	if !n.buffered {
		// whitespace-only stream, nothing to unwrap
		return nil
	}
	return n.onChunk(unwrapTextEnvelope(raw))
}

// unwrapTextEnvelope extracts the "text" field from a JSON envelope,
// following one level of double encoding. Anything unparseable is
// returned verbatim.
func unwrapTextEnvelope(raw string) string {
	current := strings.TrimSpace(raw)
	for i := 0; i < 2; i++ {
		var envelope struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal([]byte(current), &envelope); err != nil || envelope.Text == nil {
			break
		}
		current = *envelope.Text
		var inner string
		if json.Unmarshal([]byte(current), &inner) == nil && inner != "" {
			current = inner
		}
		if !strings.HasPrefix(strings.TrimSpace(current), "{") {
			break
		}
	}
	return current
}
