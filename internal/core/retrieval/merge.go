package retrieval

import (
	"sort"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

// MergeResults puts keyword hits first, ordered by hit count (ties keep scan
// order), then semantic hits in rank order. A passage whose content is already
// present is skipped, so the result never holds the same text twice.
func MergeResults(keyword []domain.ScoredPassage, semantic []domain.Passage) []domain.Passage {
	ranked := make([]domain.ScoredPassage, len(keyword))
	copy(ranked, keyword)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Hits > ranked[j].Hits
	})

	seen := make(map[string]struct{}, len(ranked)+len(semantic))
	out := make([]domain.Passage, 0, len(ranked)+len(semantic))
	add := func(p domain.Passage) {
		if _, dup := seen[p.Content]; dup {
			return
		}
		seen[p.Content] = struct{}{}
		out = append(out, p)
	}

	for _, scored := range ranked {
		add(scored.Passage)
	}
	for _, p := range semantic {
		add(p)
	}
	return out
}
