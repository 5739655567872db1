package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
	"github.com/kirillkom/manual-assistant/internal/core/retrieval"
)

// Retriever is the part of retrieval.Engine the chat flow depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (*retrieval.Result, error)
}

// ChatObserver receives one outcome per Ask call.
type ChatObserver interface {
	ObserveChat(outcome string, duration time.Duration)
}

const (
	OutcomeAnswered = "answered"
	OutcomeRejected = "rejected"
	OutcomeNotReady = "not_ready"
	OutcomeFailed   = "failed"
)

type ChatUseCase struct {
	retriever Retriever
	generator ports.AnswerGenerator
	chatLog   ports.ChatLog
	observer  ChatObserver
	logger    *slog.Logger
	now       func() time.Time

	ready atomic.Bool
}

type ChatOption func(*ChatUseCase)

func WithChatLog(chatLog ports.ChatLog) ChatOption {
	return func(uc *ChatUseCase) { uc.chatLog = chatLog }
}

func WithChatObserver(observer ChatObserver) ChatOption {
	return func(uc *ChatUseCase) { uc.observer = observer }
}

func WithChatLogger(logger *slog.Logger) ChatOption {
	return func(uc *ChatUseCase) {
		if logger != nil {
			uc.logger = logger
		}
	}
}

func NewChatUseCase(retriever Retriever, generator ports.AnswerGenerator, opts ...ChatOption) *ChatUseCase {
	uc := &ChatUseCase{
		retriever: retriever,
		generator: generator,
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Warmup prepares the generator and flips the service to ready on success.
func (uc *ChatUseCase) Warmup(ctx context.Context) error {
	if err := uc.generator.Warmup(ctx); err != nil {
		uc.ready.Store(false)
		return err
	}
	uc.ready.Store(true)
	return nil
}

func (uc *ChatUseCase) Ready() bool {
	return uc.ready.Load()
}

func (uc *ChatUseCase) BuildPrompt(ctx context.Context, query string) (string, error) {
	res, err := uc.retriever.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	return res.Prompt, nil
}

func (uc *ChatUseCase) Ask(ctx context.Context, sessionID, question string) (reply *domain.ChatReply, err error) {
	start := time.Now()
	defer func() {
		uc.observe(err, time.Since(start))
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is empty"))
	}
	if !uc.Ready() {
		return nil, domain.WrapError(domain.ErrNotReady, "ask", errors.New("answer model is not loaded"))
	}
	if strings.TrimSpace(sessionID) == "" {
		sessionID = uuid.NewString()
	}

	res, err := uc.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	answer, err := uc.generator.Generate(ctx, res.Prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	reply = &domain.ChatReply{
		SessionID: sessionID,
		Answer:    answer,
		Timestamp: uc.now(),
		Sources:   res.Passages,
	}
	uc.record(ctx, reply, question, len(res.Passages))
	return reply, nil
}

func (uc *ChatUseCase) record(ctx context.Context, reply *domain.ChatReply, question string, passages int) {
	if uc.chatLog == nil {
		return
	}
	err := uc.chatLog.AppendExchange(ctx, domain.ChatExchange{
		ID:        uuid.NewString(),
		SessionID: reply.SessionID,
		Question:  question,
		Answer:    reply.Answer,
		Passages:  passages,
		CreatedAt: reply.Timestamp,
	})
	if err != nil {
		uc.logger.Warn("chat_log_append_failed", "session_id", reply.SessionID, "error", err)
	}
}

func (uc *ChatUseCase) observe(err error, d time.Duration) {
	if uc.observer == nil {
		return
	}
	outcome := OutcomeAnswered
	switch {
	case err == nil:
	case domain.IsKind(err, domain.ErrInvalidInput):
		outcome = OutcomeRejected
	case domain.IsKind(err, domain.ErrNotReady):
		outcome = OutcomeNotReady
	default:
		outcome = OutcomeFailed
	}
	uc.observer.ObserveChat(outcome, d)
}
