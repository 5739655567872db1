package retrieval

import (
	"sort"
	"strings"
)

// Lexicon maps lowercase trigger substrings to lowercase expansion terms.
// It is built once and only read afterwards, so it is safe to share.
type Lexicon struct {
	triggers []string
	terms    map[string][]string
}

// NewLexicon normalizes entries. Triggers with no usable expansion terms are
// dropped, which makes them no-ops rather than errors.
func NewLexicon(entries map[string][]string) Lexicon {
	terms := make(map[string][]string, len(entries))
	for trigger, expansions := range entries {
		key := strings.ToLower(strings.TrimSpace(trigger))
		if key == "" {
			continue
		}
		for _, term := range expansions {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			terms[key] = appendUnique(terms[key], term)
		}
	}

	triggers := make([]string, 0, len(terms))
	for trigger := range terms {
		triggers = append(triggers, trigger)
	}
	sort.Strings(triggers)

	return Lexicon{triggers: triggers, terms: terms}
}

func (l Lexicon) Len() int {
	return len(l.triggers)
}

// Expand returns the sorted union of expansion terms for every trigger that
// occurs as a substring of the lower-cased query.
func (l Lexicon) Expand(query string) []string {
	lowered := strings.ToLower(query)
	if strings.TrimSpace(lowered) == "" {
		return nil
	}

	seen := make(map[string]struct{})
	for _, trigger := range l.triggers {
		if !strings.Contains(lowered, trigger) {
			continue
		}
		for _, term := range l.terms[trigger] {
			seen[term] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	out := make([]string, 0, len(seen))
	for term := range seen {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// Entries returns a copy of the normalized lexicon.
func (l Lexicon) Entries() map[string][]string {
	out := make(map[string][]string, len(l.terms))
	for trigger, terms := range l.terms {
		out[trigger] = append([]string(nil), terms...)
	}
	return out
}

func appendUnique(dst []string, value string) []string {
	for _, existing := range dst {
		if existing == value {
			return dst
		}
	}
	return append(dst, value)
}
