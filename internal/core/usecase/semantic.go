package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

// SemanticSearch embeds the query and asks the vector index for the
// nearest passages.
type SemanticSearch struct {
	embedder ports.Embedder
	index    ports.VectorIndex
}

func NewSemanticSearch(embedder ports.Embedder, index ports.VectorIndex) *SemanticSearch {
	return &SemanticSearch{embedder: embedder, index: index}
}

func (s *SemanticSearch) Search(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	if k <= 0 {
		return nil, nil
	}
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := s.index.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search vector index: %w", err)
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
