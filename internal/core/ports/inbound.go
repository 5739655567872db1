package ports

import (
	"context"
	"io"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

// ChatService is the inbound contract for answering manual questions.
type ChatService interface {
	Ask(ctx context.Context, sessionID, question string) (*domain.ChatReply, error)
	Ready() bool
}

// PromptService exposes the grounding prompt without generating an answer.
type PromptService interface {
	BuildPrompt(ctx context.Context, query string) (string, error)
}

// ManualUpload describes an uploaded manual before it is stored.
type ManualUpload struct {
	Filename string
	MimeType string
	Model    string
	Pages    domain.PageRange
	Body     io.Reader
}

// ManualIngestor is the inbound contract for manual upload orchestration.
type ManualIngestor interface {
	Upload(ctx context.Context, upload ManualUpload) (*domain.Manual, error)
}

// ManualReader is the inbound read model for manual metadata/state.
type ManualReader interface {
	GetByID(ctx context.Context, id string) (*domain.Manual, error)
}

// ManualProcessor is the inbound contract for asynchronous manual processing.
type ManualProcessor interface {
	ProcessByID(ctx context.Context, manualID string) error
}
