package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

type ProcessConfig struct {
	EmbedBatchSize int
	EmbedWorkers   int
}

// ProcessManualUseCase turns an uploaded manual into indexed passages.
type ProcessManualUseCase struct {
	repo      ports.ManualRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	index     ports.VectorIndex
	passages  ports.PassageStore
	batchSize int
	pool      *ants.Pool
	onReady   func(manualID string)
}

type ProcessOption func(*ProcessManualUseCase)

// OnManualReady registers a hook that runs after a manual turns ready.
func OnManualReady(fn func(manualID string)) ProcessOption {
	return func(uc *ProcessManualUseCase) { uc.onReady = fn }
}

func NewProcessManualUseCase(
	cfg ProcessConfig,
	repo ports.ManualRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
	passages ports.PassageStore,
	opts ...ProcessOption,
) (*ProcessManualUseCase, error) {
	pool, err := ants.NewPool(max(cfg.EmbedWorkers, 1))
	if err != nil {
		return nil, fmt.Errorf("create embedding pool: %w", err)
	}
	uc := &ProcessManualUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		passages:  passages,
		batchSize: max(cfg.EmbedBatchSize, 1),
		pool:      pool,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc, nil
}

func (uc *ProcessManualUseCase) Close() {
	uc.pool.Release()
}

func (uc *ProcessManualUseCase) ProcessByID(ctx context.Context, manualID string) error {
	if err := uc.repo.UpdateStatus(ctx, manualID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.pipeline(ctx, manualID); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, manualID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, manualID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	if uc.onReady != nil {
		uc.onReady(manualID)
	}
	return nil
}

func (uc *ProcessManualUseCase) pipeline(ctx context.Context, manualID string) error {
	manual, err := uc.repo.GetByID(ctx, manualID)
	if err != nil {
		return fmt.Errorf("fetch manual by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, manual)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	passages := BuildPassages(manual, uc.chunker.Split(text))
	if len(passages) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chunk manual", errors.New("no text in the selected pages"))
	}

	vectors, err := uc.embed(ctx, passages)
	if err != nil {
		return err
	}
	if err := uc.index.IndexPassages(ctx, manual, passages, vectors); err != nil {
		return fmt.Errorf("index passages: %w", err)
	}
	if err := uc.passages.ReplacePassages(ctx, manual.ID, passages); err != nil {
		return fmt.Errorf("store passages: %w", err)
	}
	return nil
}

// BuildPassages tags every chunk with the manual's source tag.
func BuildPassages(manual *domain.Manual, chunks []string) []domain.Passage {
	tag := manual.SourceTag()
	out := make([]domain.Passage, 0, len(chunks))
	for _, chunk := range chunks {
		content := chunk
		if tag != "" {
			content = tag + "\n" + chunk
		}
		out = append(out, domain.Passage{
			ManualID:   manual.ID,
			ChunkIndex: len(out),
			SourceTag:  tag,
			Content:    content,
		})
	}
	return out
}

// embed runs one Embed call per batch on the pool and reassembles the
// vectors in passage order. The first failure cancels the other batches.
func (uc *ProcessManualUseCase) embed(ctx context.Context, passages []domain.Passage) ([][]float32, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(passages))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(passages); start += uc.batchSize {
		end := min(start+uc.batchSize, len(passages))
		texts := make([]string, 0, end-start)
		for _, p := range passages[start:end] {
			texts = append(texts, p.Content)
		}

		wg.Add(1)
		err := uc.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			got, err := uc.embedder.Embed(ctx, texts)
			if err != nil {
				fail(fmt.Errorf("embed passages %d-%d: %w", start, end-1, err))
				return
			}
			if len(got) != len(texts) {
				fail(domain.WrapError(domain.ErrInvalidInput, "embed passages",
					fmt.Errorf("vectors/passages mismatch: %d/%d", len(got), len(texts))))
				return
			}
			copy(vectors[start:end], got)
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submit embedding batch: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}
