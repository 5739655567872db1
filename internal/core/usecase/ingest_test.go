package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

func TestIngestUploadSuccess(t *testing.T) {
	repo := &manualRepoFake{}
	storage := &storageFake{}
	queue := &queueFake{}
	uc := NewIngestManualUseCase(repo, storage, queue)

	manual, err := uc.Upload(context.Background(), ports.ManualUpload{
		Filename: "Husqvarna 435 manual.pdf",
		MimeType: "application/pdf",
		Model:    " Husqvarna 435 ",
		Pages:    domain.PageRange{Start: 112},
		Body:     strings.NewReader("%PDF"),
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if manual.Status != domain.StatusUploaded || manual.Model != "Husqvarna 435" || manual.StartPage != 112 {
		t.Fatalf("unexpected manual %+v", manual)
	}
	if storage.savedKey != manual.ID+"_Husqvarna_435_manual.pdf" || storage.savedBody != "%PDF" {
		t.Fatalf("unexpected stored file %q=%q", storage.savedKey, storage.savedBody)
	}
	if repo.created == nil || repo.created.StoragePath != storage.savedKey {
		t.Fatalf("manual metadata not recorded: %+v", repo.created)
	}
	if queue.manualID != manual.ID {
		t.Fatalf("expected published id %s, got %s", manual.ID, queue.manualID)
	}
}

func TestIngestUploadRejectsInvertedPages(t *testing.T) {
	repo := &manualRepoFake{}
	uc := NewIngestManualUseCase(repo, &storageFake{}, &queueFake{})

	_, err := uc.Upload(context.Background(), ports.ManualUpload{
		Filename: "a.pdf",
		Pages:    domain.PageRange{Start: 10, End: 3},
		Body:     strings.NewReader("x"),
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if repo.created != nil {
		t.Fatalf("nothing should be recorded")
	}
}

func TestIngestUploadStorageFailure(t *testing.T) {
	repo := &manualRepoFake{}
	uc := NewIngestManualUseCase(repo, &storageFake{err: errors.New("disk full")}, &queueFake{})

	_, err := uc.Upload(context.Background(), ports.ManualUpload{Filename: "a.txt", Body: strings.NewReader("x")})
	if err == nil || !strings.Contains(err.Error(), "save to object storage") {
		t.Fatalf("expected storage error, got %v", err)
	}
	if repo.created != nil {
		t.Fatalf("manual must not be created when storage fails")
	}
}

func TestIngestUploadPublishFailureMarksFailed(t *testing.T) {
	repo := &manualRepoFake{}
	uc := NewIngestManualUseCase(repo, &storageFake{}, &queueFake{err: errors.New("nats down")})

	_, err := uc.Upload(context.Background(), ports.ManualUpload{Filename: "a.txt", Body: strings.NewReader("x")})
	if err == nil || !strings.Contains(err.Error(), "publish ingestion event") {
		t.Fatalf("expected publish error, got %v", err)
	}
	if got := repo.statuses(); len(got) != 1 || got[0] != domain.StatusFailed {
		t.Fatalf("expected failed status, got %v", got)
	}
}

func TestIngestUploadWithoutQueue(t *testing.T) {
	repo := &manualRepoFake{}
	uc := NewIngestManualUseCase(repo, &storageFake{}, nil)

	manual, err := uc.Upload(context.Background(), ports.ManualUpload{Filename: "a.txt", Body: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if manual.Status != domain.StatusUploaded {
		t.Fatalf("unexpected status %s", manual.Status)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":     "passwd",
		`C:\manuals\Såg 435.pdf`: "S_g_435.pdf",
		"":                     "manual.bin",
		".env":                 "env",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
