package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

func passages(texts ...string) []domain.Passage {
	out := make([]domain.Passage, len(texts))
	for i, text := range texts {
		out[i] = domain.Passage{Content: text}
	}
	return out
}

func TestPackContextTruncatesFinalPassageToFillBudget(t *testing.T) {
	got := PackContext(passages("0123456789", "abcdefghij", "zzzzz"), 20)

	if got.Text != "0123456789 abcdefghi" {
		t.Fatalf("PackContext() = %q", got.Text)
	}
	if n := utf8.RuneCountInString(got.Text); n != 20 {
		t.Fatalf("expected 20 characters, got %d", n)
	}
	if !got.Truncated || got.Included != 2 {
		t.Fatalf("expected 2 included with truncation, got %+v", got)
	}
}

func TestPackContextBudgetEndingOnSeparatorDropsRest(t *testing.T) {
	got := PackContext(passages("0123456789", "abc", "zz"), 11)

	if got.Text != "0123456789" || got.Included != 1 {
		t.Fatalf("unexpected pack result %+v", got)
	}
	if !got.Truncated {
		t.Fatalf("dropped passages must mark the context truncated")
	}
}

func TestPackContextExactFitOfLastPassageIsNotTruncated(t *testing.T) {
	got := PackContext(passages("0123456789", "abc"), 14)

	if got.Text != "0123456789 abc" || got.Included != 2 {
		t.Fatalf("unexpected pack result %+v", got)
	}
	if got.Truncated {
		t.Fatalf("nothing was cut, got %+v", got)
	}
}

func TestPackContextShorterThanBudget(t *testing.T) {
	got := PackContext(passages("första\nraden", "andra"), 4000)
	if got.Text != "första raden andra" {
		t.Fatalf("PackContext() = %q", got.Text)
	}
	if got.Truncated || got.Included != 2 {
		t.Fatalf("unexpected pack result %+v", got)
	}
}

func TestPackContextBudgetSmallerThanFirstPassage(t *testing.T) {
	got := PackContext(passages("Motorsågens vikt är 4.9 kg"), 8)
	if got.Text != "Motorsåg" {
		t.Fatalf("PackContext() = %q", got.Text)
	}
}

func TestPackContextNonPositiveBudget(t *testing.T) {
	for _, budget := range []int{0, -1, -100} {
		got := PackContext(passages("abc"), budget)
		if got.Text != "" || got.Included != 0 {
			t.Fatalf("budget %d: expected empty context, got %+v", budget, got)
		}
	}
}

func TestPackContextNeverExceedsBudget(t *testing.T) {
	texts := []string{"å", "ää", "ööö", strings.Repeat("x", 17), "", "kedjeolja", strings.Repeat("é", 40)}
	for budget := 0; budget <= 80; budget++ {
		got := PackContext(passages(texts...), budget)
		if n := utf8.RuneCountInString(got.Text); n > budget {
			t.Fatalf("budget %d exceeded: %d characters in %q", budget, n, got.Text)
		}
	}
}

func TestPackContextExactFillWhenCorpusExceedsBudget(t *testing.T) {
	texts := []string{"alfa", "beta", "gamma", "delta"}
	full := strings.Join(texts, "\n")
	for budget := 1; budget < utf8.RuneCountInString(full); budget++ {
		got := PackContext(passages(texts...), budget)
		prefix := strings.ReplaceAll(string([]rune(full)[:budget]), "\n", " ")
		want := strings.TrimSpace(prefix)
		if got.Text != want {
			t.Fatalf("budget %d: got %q, want %q", budget, got.Text, want)
		}
	}
}
