package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

type statusCall struct {
	status domain.ManualStatus
	errMsg string
}

type manualRepoFake struct {
	mu            sync.Mutex
	manual        *domain.Manual
	created       *domain.Manual
	createErr     error
	getErr        error
	statusErr     error
	failStatusErr error
	statusCalls   []statusCall
}

func (f *manualRepoFake) Create(_ context.Context, m *domain.Manual) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *m
	f.created = &copied
	return nil
}

func (f *manualRepoFake) GetByID(context.Context, string) (*domain.Manual, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copied := *f.manual
	return &copied, nil
}

func (f *manualRepoFake) UpdateStatus(_ context.Context, _ string, status domain.ManualStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if status == domain.StatusFailed && f.failStatusErr != nil {
		return f.failStatusErr
	}
	return f.statusErr
}

func (f *manualRepoFake) statuses() []domain.ManualStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ManualStatus, 0, len(f.statusCalls))
	for _, c := range f.statusCalls {
		out = append(out, c.status)
	}
	return out
}

type storageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.savedBody)), nil
}

type queueFake struct {
	manualID string
	err      error
}

func (f *queueFake) PublishManualUploaded(_ context.Context, manualID string) error {
	if f.err != nil {
		return f.err
	}
	f.manualID = manualID
	return nil
}

func (f *queueFake) SubscribeManualUploaded(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}
