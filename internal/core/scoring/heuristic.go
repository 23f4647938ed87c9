package scoring

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/avoskres/assisted-search/internal/core/domain"
)

// Weights of the lexical heuristic. The sum is 1.0 so the raw combination
// already lands in [0,1]; clamping only guards rounding.
const (
	weightJaccard  = 0.3
	weightCoverage = 0.5
	weightTitle    = 0.2
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "is": {}, "are": {}, "was": {},
}

// Heuristic scores hits lexically against the document title, without
// any I/O. Deterministic for identical inputs.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Score(_ context.Context, query, normalizedQuery string, hit domain.SearchHit) (domain.RelevanceJudgement, error) {
	q := strings.TrimSpace(normalizedQuery)
	if q == "" {
		q = strings.TrimSpace(query)
	}

	queryTokens := toTokenSet(q)
	titleTokens := toTokenSet(hit.Title)
	if len(queryTokens) == 0 || len(titleTokens) == 0 {
		return domain.RelevanceJudgement{Score: 0.0, Reason: "no comparable tokens"}, nil
	}

	jaccard := jaccardIndex(queryTokens, titleTokens)
	coverage := tokenCoverage(queryTokens, titleTokens)
	titleBonus := titleMatchBonus(q, hit.Title)

	score := clamp01(weightJaccard*jaccard + weightCoverage*coverage + weightTitle*titleBonus)
	reason := fmt.Sprintf("jaccard=%.2f coverage=%.2f title=%.2f", jaccard, coverage, titleBonus)
	return domain.RelevanceJudgement{Score: score, Reason: reason}, nil
}

func jaccardIndex(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenCoverage(query, doc map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := doc[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

// titleMatchBonus is 1.0 when the whole query appears verbatim in the
// title, otherwise the fraction of whitespace-separated query words
// found in the title.
func titleMatchBonus(query, title string) float64 {
	if title == "" {
		return 0
	}
	lowTitle := strings.ToLower(title)
	lowQuery := strings.ToLower(strings.TrimSpace(query))
	if lowQuery != "" && strings.Contains(lowTitle, lowQuery) {
		return 1
	}
	words := strings.Fields(lowQuery)
	if len(words) == 0 {
		return 0
	}
	matches := 0
	for _, word := range words {
		if strings.Contains(lowTitle, word) {
			matches++
		}
	}
	return float64(matches) / float64(len(words))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitWordsLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if len(token) <= 2 {
			continue
		}
		if _, ok := stopWords[token]; ok {
			continue
		}
		out[token] = struct{}{}
	}
	return out
}

func splitWordsLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
