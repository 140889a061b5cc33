package draft

import (
	"github.com/lysyi3m/insightpress/app/news"
)

var offBrandKeywords = []string{
	"died", "death", "funeral", "obituary",
	"election", "vote", "congress", "senate",
	"health", "medical", "doctor", "patient",
	"entertainment", "movie", "film", "tv show",
	"sports", "game", "player", "coach",
}

var techKeywords = []string{"security", "kubernetes", "ai", "ml", "devops", "cloud"}

// HighTopicConfidence reports whether a scored item clearly belongs to the
// configured topics. Off-brand subjects only pass when a core tech keyword
// is also present.
func HighTopicConfidence(item news.Item) bool {
	if len(item.TopicsMatched) == 0 {
		return false
	}

	text := wordText(item)
	if !containsAny(text, offBrandKeywords) {
		return true
	}
	return containsAny(text, techKeywords)
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(text, p) {
			return true
		}
	}
	return false
}
