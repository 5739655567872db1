package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

type IngestManualUseCase struct {
	repo    ports.ManualRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestManualUseCase(
	repo ports.ManualRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestManualUseCase {
	return &IngestManualUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Upload stores the file and records the manual. When a queue is
// configured the manual ID is published for asynchronous processing.
func (uc *IngestManualUseCase) Upload(ctx context.Context, upload ports.ManualUpload) (*domain.Manual, error) {
	if err := upload.Pages.Validate(); err != nil {
		return nil, err
	}
	if upload.Body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload manual", fmt.Errorf("file is missing"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(upload.Filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, upload.Body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	manual := &domain.Manual{
		ID:          id,
		Filename:    upload.Filename,
		MimeType:    upload.MimeType,
		StoragePath: storageKey,
		Model:       strings.TrimSpace(upload.Model),
		StartPage:   upload.Pages.Start,
		EndPage:     upload.Pages.End,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repo.Create(ctx, manual); err != nil {
		return nil, fmt.Errorf("create manual metadata: %w", err)
	}

	if uc.queue == nil {
		return manual, nil
	}
	if err := uc.queue.PublishManualUploaded(ctx, manual.ID); err != nil {
		if markErr := uc.repo.UpdateStatus(ctx, manual.ID, domain.StatusFailed, "publish: "+err.Error()); markErr != nil {
			return nil, fmt.Errorf("publish ingestion event: %w; mark failed status: %v", err, markErr)
		}
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}
	return manual, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	base = strings.TrimLeft(base, ".")
	if base == "" {
		return "manual.bin"
	}
	return base
}
