// Package i18n holds the user-visible status strings streamed to clients.
package i18n

import "strings"

type Key string

const (
	KeyAnalyzing    Key = "analyzing"
	KeySearching    Key = "searching"
	KeyEvaluating   Key = "evaluating"
	KeyComposing    Key = "composing"
	KeyRetrying     Key = "retrying"
	KeyNoResults    Key = "no_results"
	KeySourcesFound Key = "sources_found"
)

var catalog = map[string]map[Key]string{
	"en": {
		KeyAnalyzing:    "Analyzing your question...",
		KeySearching:    "Searching documents...",
		KeyEvaluating:   "Checking result relevance...",
		KeyComposing:    "Composing the answer...",
		KeyRetrying:     "Refining the search...",
		KeyNoResults:    "No matching documents were found.",
		KeySourcesFound: "The answer could not be generated. The most relevant sources are:",
	},
	"ja": {
		KeyAnalyzing:    "質問を分析しています...",
		KeySearching:    "ドキュメントを検索しています...",
		KeyEvaluating:   "検索結果の関連性を確認しています...",
		KeyComposing:    "回答を作成しています...",
		KeyRetrying:     "検索条件を調整しています...",
		KeyNoResults:    "該当するドキュメントが見つかりませんでした。",
		KeySourcesFound: "回答を生成できませんでした。関連度の高い情報源は次のとおりです:",
	},
}

// Message resolves a status string, falling back to English for unknown
// languages or missing keys.
func Message(language string, key Key) string {
	lang := strings.ToLower(strings.TrimSpace(language))
	if messages, ok := catalog[lang]; ok {
		if msg, ok := messages[key]; ok {
			return msg
		}
	}
	return catalog["en"][key]
}
