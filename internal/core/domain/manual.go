package domain

import (
	"fmt"
	"time"
)

type ManualStatus string

const (
	StatusUploaded   ManualStatus = "uploaded"
	StatusProcessing ManualStatus = "processing"
	StatusReady      ManualStatus = "ready"
	StatusFailed     ManualStatus = "failed"
)

type Manual struct {
	ID           string       `json:"id"`
	Filename     string       `json:"filename"`
	MimeType     string       `json:"mime_type"`
	StoragePath  string       `json:"storage_path"`
	Model        string       `json:"model,omitempty"`
	StartPage    int          `json:"start_page,omitempty"`
	EndPage      int          `json:"end_page,omitempty"`
	Status       ManualStatus `json:"status"`
	Error        string       `json:"error,omitempty"`
	PassageCount int          `json:"passage_count"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// PageRange is 1-based and inclusive. End == 0 means through the last page.
type PageRange struct {
	Start int
	End   int
}

func (r PageRange) Validate() error {
	if r.Start < 0 || r.End < 0 {
		return WrapError(ErrInvalidInput, "page range", fmt.Errorf("negative page bound %d-%d", r.Start, r.End))
	}
	if r.End > 0 && r.Start > r.End {
		return WrapError(ErrInvalidInput, "page range", fmt.Errorf("start %d after end %d", r.Start, r.End))
	}
	return nil
}

// Bounds clamps the range to a document with total pages.
func (r PageRange) Bounds(total int) (int, int) {
	start := r.Start
	if start < 1 {
		start = 1
	}
	end := r.End
	if end <= 0 || end > total {
		end = total
	}
	return start, end
}

func (m *Manual) PageRange() PageRange {
	return PageRange{Start: m.StartPage, End: m.EndPage}
}

// SourceTag is the label prefixed into every passage of the manual.
func (m *Manual) SourceTag() string {
	if m.Model == "" {
		return ""
	}
	return fmt.Sprintf("[MODELL: %s]", m.Model)
}
