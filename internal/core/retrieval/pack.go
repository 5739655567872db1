package retrieval

import (
	"strings"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

const passageSeparator = '\n'

// Packed is the result of fitting merged passages into the context budget.
type Packed struct {
	Text      string
	Included  int
	Truncated bool
}

// PackContext concatenates passages separated by a line break until the
// budget (in characters) is reached. The passage that would reach or overflow
// the budget contributes only the prefix that exactly fills it, and packing
// stops there. Line breaks are then replaced by spaces and the result trimmed.
func PackContext(passages []domain.Passage, maxLen int) Packed {
	if maxLen <= 0 || len(passages) == 0 {
		return Packed{}
	}

	var buf strings.Builder
	used := 0
	included := 0
	truncated := false

	for i, p := range passages {
		content := []rune(p.Content)
		if used+len(content) < maxLen {
			buf.WriteString(p.Content)
			buf.WriteRune(passageSeparator)
			used += len(content) + 1
			included++
			continue
		}

		remaining := maxLen - used
		if remaining > 0 {
			buf.WriteString(string(content[:remaining]))
			used += remaining
			included++
		}
		truncated = remaining < len(content) || i+1 < len(passages)
		break
	}

	return Packed{
		Text:      cleanContext(buf.String()),
		Included:  included,
		Truncated: truncated,
	}
}

func cleanContext(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\n", " ")
	return strings.TrimSpace(raw)
}
