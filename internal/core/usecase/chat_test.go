package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/retrieval"
)

type retrieverFake struct {
	result *retrieval.Result
	err    error
	query  string
}

func (f *retrieverFake) Retrieve(_ context.Context, query string) (*retrieval.Result, error) {
	f.query = query
	return f.result, f.err
}

type generatorFake struct {
	answer    string
	err       error
	warmupErr error
	prompt    string
}

func (f *generatorFake) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.answer, f.err
}

func (f *generatorFake) Warmup(context.Context) error { return f.warmupErr }

type chatLogFake struct {
	exchanges []domain.ChatExchange
	err       error
}

func (f *chatLogFake) AppendExchange(_ context.Context, ex domain.ChatExchange) error {
	f.exchanges = append(f.exchanges, ex)
	return f.err
}

type chatObserverFake struct {
	outcomes []string
}

func (f *chatObserverFake) ObserveChat(outcome string, _ time.Duration) {
	f.outcomes = append(f.outcomes, outcome)
}

func newReadyChat(t *testing.T, r *retrieverFake, g *generatorFake, opts ...ChatOption) *ChatUseCase {
	t.Helper()
	uc := NewChatUseCase(r, g, opts...)
	if err := uc.Warmup(context.Background()); err != nil {
		t.Fatalf("Warmup() error = %v", err)
	}
	return uc
}

func TestAskAnswersFromGroundingPrompt(t *testing.T) {
	sources := []domain.Passage{{Content: "Vikt 4,4 kg"}}
	retriever := &retrieverFake{result: &retrieval.Result{Prompt: "PROMPT", Passages: sources}}
	generator := &generatorFake{answer: "Den väger 4,4 kg."}
	chatLog := &chatLogFake{}
	observer := &chatObserverFake{}
	uc := newReadyChat(t, retriever, generator, WithChatLog(chatLog), WithChatObserver(observer))
	fixed := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return fixed }

	reply, err := uc.Ask(context.Background(), "s-1", "  Hur mycket väger den?  ")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if retriever.query != "Hur mycket väger den?" {
		t.Fatalf("question not trimmed before retrieval: %q", retriever.query)
	}
	if generator.prompt != "PROMPT" {
		t.Fatalf("generator did not receive the grounding prompt: %q", generator.prompt)
	}
	if reply.Answer != "Den väger 4,4 kg." || reply.SessionID != "s-1" || !reply.Timestamp.Equal(fixed) || len(reply.Sources) != 1 {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if len(chatLog.exchanges) != 1 || chatLog.exchanges[0].Passages != 1 || chatLog.exchanges[0].SessionID != "s-1" {
		t.Fatalf("unexpected chat log %+v", chatLog.exchanges)
	}
	if len(observer.outcomes) != 1 || observer.outcomes[0] != OutcomeAnswered {
		t.Fatalf("unexpected outcomes %v", observer.outcomes)
	}
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	observer := &chatObserverFake{}
	uc := newReadyChat(t, &retrieverFake{}, &generatorFake{}, WithChatObserver(observer))

	_, err := uc.Ask(context.Background(), "", "   ")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if observer.outcomes[0] != OutcomeRejected {
		t.Fatalf("unexpected outcome %v", observer.outcomes)
	}
}

func TestAskBeforeWarmupIsNotReady(t *testing.T) {
	uc := NewChatUseCase(&retrieverFake{}, &generatorFake{})
	if uc.Ready() {
		t.Fatalf("service must start not ready")
	}
	_, err := uc.Ask(context.Background(), "", "Vad kostar den?")
	if !domain.IsKind(err, domain.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestWarmupFailureKeepsServiceNotReady(t *testing.T) {
	uc := NewChatUseCase(&retrieverFake{}, &generatorFake{warmupErr: domain.WrapError(domain.ErrNotReady, "warmup", errors.New("no model"))})
	if err := uc.Warmup(context.Background()); !domain.IsKind(err, domain.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if uc.Ready() {
		t.Fatalf("service must stay not ready")
	}
}

func TestAskAssignsSessionID(t *testing.T) {
	uc := newReadyChat(t, &retrieverFake{result: &retrieval.Result{Prompt: "p"}}, &generatorFake{answer: "ok"})
	reply, err := uc.Ask(context.Background(), " ", "Fråga")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if reply.SessionID == "" {
		t.Fatalf("expected generated session id")
	}
}

func TestAskIgnoresChatLogFailure(t *testing.T) {
	uc := newReadyChat(t,
		&retrieverFake{result: &retrieval.Result{Prompt: "p"}},
		&generatorFake{answer: "ok"},
		WithChatLog(&chatLogFake{err: errors.New("db down")}),
	)
	if _, err := uc.Ask(context.Background(), "s", "Fråga"); err != nil {
		t.Fatalf("chat log failure must not fail the request, got %v", err)
	}
}

func TestAskPropagatesRetrievalAndGenerationErrors(t *testing.T) {
	errSearch := domain.WrapError(domain.ErrTemporary, "qdrant", errors.New("503"))
	observer := &chatObserverFake{}
	uc := newReadyChat(t, &retrieverFake{err: errSearch}, &generatorFake{}, WithChatObserver(observer))
	if _, err := uc.Ask(context.Background(), "s", "Fråga"); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}

	errGen := errors.New("quota")
	uc = newReadyChat(t, &retrieverFake{result: &retrieval.Result{Prompt: "p"}}, &generatorFake{err: errGen})
	if _, err := uc.Ask(context.Background(), "s", "Fråga"); !errors.Is(err, errGen) {
		t.Fatalf("expected generator error, got %v", err)
	}
	if observer.outcomes[0] != OutcomeFailed {
		t.Fatalf("unexpected outcome %v", observer.outcomes)
	}
}

func TestBuildPromptSkipsGeneration(t *testing.T) {
	generator := &generatorFake{err: errors.New("must not be called")}
	uc := NewChatUseCase(&retrieverFake{result: &retrieval.Result{Prompt: "ONLY PROMPT"}}, generator)

	got, err := uc.BuildPrompt(context.Background(), "Fråga")
	if err != nil || got != "ONLY PROMPT" {
		t.Fatalf("expected prompt, got %q (%v)", got, err)
	}
	if generator.prompt != "" {
		t.Fatalf("generator must not be called")
	}
}
