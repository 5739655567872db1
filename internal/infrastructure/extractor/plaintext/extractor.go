package plaintext

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode returns UTF-8 text with normalized line endings. Form feeds are
// treated as page breaks so the page range applies to plain text too.
func Decode(raw []byte, pages domain.PageRange) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode text", fmt.Errorf("content is not valid UTF-8"))
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	if !strings.Contains(text, "\f") {
		return strings.TrimSpace(text), nil
	}

	all := strings.Split(text, "\f")
	start, end := pages.Bounds(len(all))
	if start > end {
		return "", nil
	}
	return strings.TrimSpace(strings.Join(all[start-1:end], "\n")), nil
}
