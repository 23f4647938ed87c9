package ollama

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

const maxHistoryLines = 10

func buildIntentPrompt(req domain.IntentRequest) string {
	return fmt.Sprintf(`You convert user questions into full-text search queries for an enterprise document index.
Return strict JSON object with keys:
normalized_query (string, Lucene-compatible search query, at least 1 character),
filters (object with optional keys site, mimetype, updated_after),
followups (array of at most 3 follow-up question strings),
ambiguity (one of "low", "medium", "high").
No markdown, no extra keys.

Answer language: %s

Previous queries in this session (most recent first):
%s

Requested filters:
%s

User question:
%s`, languageOrDefault(req.Language), historyBlock(req.History), filtersBlock(req.Filters), req.Query)
}

func buildRetryIntentNoResultsPrompt(req domain.IntentRequest, previous domain.Intent) string {
	return fmt.Sprintf(`The search query below returned ZERO results. Produce a BROADER query:
drop narrow terms, remove quotes, prefer synonyms and more general wording.
Return strict JSON object with keys:
normalized_query (string), filters (object), followups (array of at most 3 strings),
ambiguity (one of "low", "medium", "high").
No markdown, no extra keys.

Answer language: %s

Failed query:
%s

Original user question:
%s`, languageOrDefault(req.Language), previous.NormalizedQuery, req.Query)
}

func buildRetryIntentPrompt(req domain.IntentRequest, previous domain.Intent, hits []domain.SearchHit) string {
	return fmt.Sprintf(`The search query below found only weakly relevant documents.
Produce a MATERIALLY DIFFERENT query: new key terms, different angle, not a trivial rewording.
Return strict JSON object with keys:
normalized_query (string), filters (object), followups (array of at most 3 strings),
ambiguity (one of "low", "medium", "high").
No markdown, no extra keys.

Answer language: %s

Previous query:
%s

Best documents it found:
%s

Original user question:
%s`, languageOrDefault(req.Language), previous.NormalizedQuery, scoredTitlesBlock(hits, 5), req.Query)
}

func buildRelevancePrompt(query string, hit domain.SearchHit) string {
	return fmt.Sprintf(`Rate how well the document answers the user question.
Scale:
1.0 = directly and completely answers the question
0.7-0.9 = answers most of it
0.4-0.6 = related but incomplete
0.1-0.3 = mentions the topic only in passing
0.0 = unrelated
Return strict JSON object with keys: score (number from 0 to 1), reason (short string).
No markdown, no extra keys.

User question:
%s

Document title:
%s

Document snippet:
%s`, query, hit.Title, hit.Snippet)
}

func buildComposePrompt(req domain.RetrievalRequest, hits []domain.SearchHit) string {
	return fmt.Sprintf(`Answer the user question ONLY from the sources below.
Do not include citation markers like [1] or [2] in the text; the numbering is added afterwards.
If the sources are insufficient, say so directly.
Keep the answer under 300 characters.
Return strict JSON object with keys:
text (string), suggested_questions (array of at most 3 strings).
No markdown, no extra keys.

Answer language: %s

User question:
%s

Sources:
%s`, languageOrDefault(req.Language), req.Query, sourcesBlock(hits))
}

func buildComposeStreamPrompt(req domain.RetrievalRequest, hits []domain.SearchHit) string {
	return fmt.Sprintf(`Answer the user question ONLY from the sources below.
Do not include citation markers like [1] or [2] in the text; the numbering is added afterwards.
If the sources are insufficient, say so directly.
Write plain prose. Do NOT wrap the answer in JSON or markdown fences.

Answer language: %s

User question:
%s

Sources:
%s`, languageOrDefault(req.Language), req.Query, sourcesBlock(hits))
}

func buildMergePrompt(query string, results []domain.AgentResult) string {
	var b strings.Builder
	for _, result := range results {
		fmt.Fprintf(&b, "Agent %s (%s): max_score=%.2f, %d documents\n",
			result.AgentID, result.AgentName, result.Outcome.MaxScore, len(result.Outcome.Hits))
		for idx, hit := range result.Outcome.Hits {
			if idx >= 3 {
				break
			}
			fmt.Fprintf(&b, "  - %s (%s)\n", hit.Title, hit.URL)
		}
	}

	return fmt.Sprintf(`Several search agents answered the same question. Decide whose results to keep.
Return strict JSON object with keys:
selected_agent_ids (non-empty array of agent id strings),
reason (short string),
merge_strategy (one of "single", "merge").
Use "single" when one agent clearly wins, "merge" to combine several.
No markdown, no extra keys.

User question:
%s

Agent results:
%s`, query, b.String())
}

func historyBlock(history []string) string {
	if len(history) == 0 {
		return "No previous queries in this session."
	}
	lines := make([]string, 0, len(history))
	// history arrives oldest first; the prompt wants most recent first
	for i := len(history) - 1; i >= 0 && len(lines) < maxHistoryLines; i-- {
		lines = append(lines, fmt.Sprintf("%d. %s", len(lines)+1, history[i]))
	}
	return strings.Join(lines, "\n")
}

func filtersBlock(filters domain.SearchFilters) string {
	if filters.IsZero() {
		return "{}"
	}
	raw, err := json.Marshal(filters)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func scoredTitlesBlock(hits []domain.SearchHit, limit int) string {
	if len(hits) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, limit)
	for _, hit := range hits {
		if len(lines) >= limit {
			break
		}
		score := 0.0
		if hit.RelevanceScore != nil {
			score = *hit.RelevanceScore
		}
		lines = append(lines, fmt.Sprintf("[Score: %.2f] %s", score, hit.Title))
	}
	return strings.Join(lines, "\n")
}

func sourcesBlock(hits []domain.SearchHit) string {
	if len(hits) == 0 {
		return "(no sources found)"
	}
	var b strings.Builder
	for idx, hit := range hits {
		fmt.Fprintf(&b, "[%d] %s\n%s\n%s\n\n", idx+1, hit.Title, hit.URL, hit.Snippet)
	}
	return b.String()
}

func languageOrDefault(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "ja":
		return "Japanese"
	case "", "en":
		return "English"
	default:
		return language
	}
}
