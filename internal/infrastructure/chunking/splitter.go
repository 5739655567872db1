package chunking

import "strings"

const (
	DefaultChunkSize = 1500
	DefaultOverlap   = 300
)

// Splitter cuts text into rune windows of at most ChunkSize with Overlap
// runes shared between neighbours. Windows end on a paragraph, line or
// word break when one exists in the second half of the window.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}
}

var separators = [][]rune{{'\n', '\n'}, {'\n'}, {' '}}

func (s *Splitter) Split(text string) []string {
	runes := []rune(strings.ReplaceAll(text, "\r\n", "\n"))
	n := len(runes)
	if n == 0 {
		return nil
	}

	var out []string
	for start := 0; start < n; {
		end := min(start+s.ChunkSize, n)
		if end < n {
			end = s.breakBefore(runes, start, end)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == n {
			break
		}
		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func (s *Splitter) breakBefore(runes []rune, start, end int) int {
	floor := start + s.ChunkSize/2
	for _, sep := range separators {
		for i := end - len(sep); i >= floor; i-- {
			if hasPrefixAt(runes, i, sep) {
				return i + len(sep)
			}
		}
	}
	return end
}

func hasPrefixAt(runes []rune, i int, sep []rune) bool {
	if i < 0 || i+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}
