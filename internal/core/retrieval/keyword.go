package retrieval

import (
	"strings"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

// MatchKeywords scores every passage by the number of distinct terms found in
// its lower-cased content and keeps those with at least minHits. Results keep
// corpus scan order; ranking is left to MergeResults.
func MatchKeywords(terms []string, corpus []domain.Passage, minHits int) []domain.ScoredPassage {
	if len(terms) == 0 || len(corpus) == 0 {
		return nil
	}
	if minHits < 1 {
		minHits = 1
	}

	var out []domain.ScoredPassage
	for _, passage := range corpus {
		hits := countHits(strings.ToLower(passage.Content), terms)
		if hits >= minHits {
			out = append(out, domain.ScoredPassage{Passage: passage, Hits: hits})
		}
	}
	return out
}

func countHits(content string, terms []string) int {
	hits := 0
	for _, term := range terms {
		if term != "" && strings.Contains(content, term) {
			hits++
		}
	}
	return hits
}
