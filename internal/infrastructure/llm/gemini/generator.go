package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/resilience"
)

const warmupPrompt = "Svara med ett ord: hej"

// Models is the subset of genai.Models the generator calls.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator answers prompts with the first candidate model that passed
// Warmup.
type Generator struct {
	models     Models
	candidates []string
	executor   *resilience.Executor
	logger     *slog.Logger

	mu       sync.RWMutex
	selected string
}

type Option func(*Generator)

func WithExecutor(executor *resilience.Executor) Option {
	return func(g *Generator) {
		g.executor = executor
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func New(ctx context.Context, apiKey string, candidates []string, opts ...Option) (*Generator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "gemini client", errors.New("api key is empty"))
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return NewWithModels(client.Models, candidates, opts...), nil
}

func NewWithModels(models Models, candidates []string, opts ...Option) *Generator {
	g := &Generator{
		models:     models,
		candidates: append([]string(nil), candidates...),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Warmup probes the candidates in order and keeps the first one that
// answers.
func (g *Generator) Warmup(ctx context.Context) error {
	var errs []error
	for _, model := range g.candidates {
		if _, err := g.generate(ctx, model, warmupPrompt); err != nil {
			g.logger.Warn("gemini_model_unavailable", "model", model, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", model, err))
			continue
		}
		g.mu.Lock()
		g.selected = model
		g.mu.Unlock()
		g.logger.Info("gemini_model_selected", "model", model)
		return nil
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no candidate models configured"))
	}
	return domain.WrapError(domain.ErrNotReady, "gemini warmup", errors.Join(errs...))
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	model := g.Model()
	if model == "" {
		return "", domain.WrapError(domain.ErrNotReady, "gemini generate", errors.New("no model selected"))
	}
	return g.generate(ctx, model, prompt)
}

func (g *Generator) Model() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.selected
}

func (g *Generator) generate(ctx context.Context, model, prompt string) (string, error) {
	text, err := resilience.Call(ctx, g.executor, "gemini.generate", func(ctx context.Context) (string, error) {
		resp, err := g.models.GenerateContent(ctx, model, genai.Text(prompt), nil)
		if err != nil {
			return "", err
		}
		return responseText(resp)
	}, classifyGeminiError)
	if err != nil {
		if resilience.IsCircuitOpen(err) || classifyGeminiError(err).Retryable {
			return "", domain.WrapError(domain.ErrTemporary, "gemini generate", err)
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.New("response has no text")
	}
	return text, nil
}

func classifyGeminiError(err error) resilience.Classification {
	if errors.Is(err, context.Canceled) {
		return resilience.Classification{}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.Classification{Retryable: true, Trips: true}
	}
	if code, ok := apiErrorCode(err); ok {
		switch code {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.Classification{Retryable: true, Trips: true}
		}
		return resilience.Classification{}
	}
	return resilience.Classification{Trips: true}
}

func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}
