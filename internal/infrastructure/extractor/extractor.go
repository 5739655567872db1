package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/extractor/spreadsheet"
)

type Format string

const (
	FormatPDF         Format = "pdf"
	FormatSpreadsheet Format = "spreadsheet"
	FormatText        Format = "text"
)

// Extractor reads a stored manual and decodes it by format.
type Extractor struct {
	storage ports.ObjectStorage
}

func New(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, manual *domain.Manual) (string, error) {
	reader, err := e.storage.Open(ctx, manual.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source manual: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source manual: %w", err)
	}

	switch DetectFormat(manual.Filename, manual.MimeType, raw) {
	case FormatPDF:
		return pdf.Decode(raw, manual.PageRange())
	case FormatSpreadsheet:
		return spreadsheet.Decode(raw)
	default:
		return plaintext.Decode(raw, manual.PageRange())
	}
}

// DetectFormat prefers content sniffing, then MIME type, then extension.
func DetectFormat(filename, mimeType string, raw []byte) Format {
	if strings.HasPrefix(string(raw[:min(len(raw), 5)]), "%PDF-") {
		return FormatPDF
	}
	mimeType = strings.ToLower(mimeType)
	switch {
	case mimeType == "application/pdf":
		return FormatPDF
	case strings.Contains(mimeType, "spreadsheetml"):
		return FormatSpreadsheet
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF
	case ".xlsx", ".xlsm":
		return FormatSpreadsheet
	}
	return FormatText
}
