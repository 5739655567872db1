package ports

import (
	"context"
	"io"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

// SemanticSearcher returns at most k passages ranked by descending similarity.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, k int) ([]domain.Passage, error)
}

// CorpusScanner enumerates every stored passage in a stable order.
type CorpusScanner interface {
	ScanPassages(ctx context.Context) ([]domain.Passage, error)
}

// AnswerGenerator turns a grounding prompt into the user-facing answer.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Warmup(ctx context.Context) error
}

// ManualRepository persists and reads manual state.
type ManualRepository interface {
	Create(ctx context.Context, manual *domain.Manual) error
	GetByID(ctx context.Context, id string) (*domain.Manual, error)
	UpdateStatus(ctx context.Context, id string, status domain.ManualStatus, errMessage string) error
}

// PassageStore replaces the passages of one manual atomically.
type PassageStore interface {
	ReplacePassages(ctx context.Context, manualID string, passages []domain.Passage) error
}

// ChatLog records answered questions per session.
type ChatLog interface {
	AppendExchange(ctx context.Context, exchange domain.ChatExchange) error
}

// ObjectStorage stores uploaded manual files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishManualUploaded(ctx context.Context, manualID string) error
	SubscribeManualUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text for the manual's page range.
type TextExtractor interface {
	Extract(ctx context.Context, manual *domain.Manual) (string, error)
}

// Chunker splits text into overlapping passages.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for passages and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores passage vectors and answers nearest-neighbour queries.
type VectorIndex interface {
	IndexPassages(ctx context.Context, manual *domain.Manual, passages []domain.Passage, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Passage, error)
}
