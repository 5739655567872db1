package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

type Config struct {
	SemanticTopK     int
	MinKeywordHits   int
	MaxContextLength int
}

func (c Config) Validate() error {
	var errs []error
	if c.SemanticTopK < 0 {
		errs = append(errs, fmt.Errorf("semantic top k must be >= 0, got %d", c.SemanticTopK))
	}
	if c.MinKeywordHits < 1 {
		errs = append(errs, fmt.Errorf("minimum keyword hits must be >= 1, got %d", c.MinKeywordHits))
	}
	if c.MaxContextLength < 0 {
		errs = append(errs, fmt.Errorf("max context length must be >= 0, got %d", c.MaxContextLength))
	}
	if len(errs) > 0 {
		return domain.WrapError(domain.ErrInvalidConfig, "retrieval config", errors.Join(errs...))
	}
	return nil
}

// Stats describes one retrieval run.
type Stats struct {
	ExpandedTerms int
	KeywordHits   int
	SemanticHits  int
	Merged        int
	Included      int
	ContextChars  int
	Truncated     bool
}

type Observer interface {
	ObserveRetrieval(stats Stats)
}

// Result carries everything the engine derived for one query.
type Result struct {
	Terms    []string
	Passages []domain.Passage
	Context  Packed
	Prompt   string
	Stats    Stats
}

type Engine struct {
	cfg      Config
	lexicon  Lexicon
	semantic ports.SemanticSearcher
	corpus   ports.CorpusScanner
	prompts  *PromptBuilder
	observer Observer
	logger   *slog.Logger
}

type Option func(*Engine)

func WithObserver(observer Observer) Option {
	return func(e *Engine) { e.observer = observer }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine validates cfg before anything else so that a misconfigured engine
// never reaches a collaborator.
func NewEngine(
	cfg Config,
	lexicon Lexicon,
	semantic ports.SemanticSearcher,
	corpus ports.CorpusScanner,
	prompts *PromptBuilder,
	opts ...Option,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if semantic == nil || corpus == nil || prompts == nil {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "retrieval engine", errors.New("semantic searcher, corpus and prompt builder are required"))
	}

	e := &Engine{
		cfg:      cfg,
		lexicon:  lexicon,
		semantic: semantic,
		corpus:   corpus,
		prompts:  prompts,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Expand(query string) []string {
	return e.lexicon.Expand(query)
}

// BuildPrompt expands, retrieves, merges, packs and renders the grounding prompt.
func (e *Engine) BuildPrompt(ctx context.Context, query string) (string, error) {
	res, err := e.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	return res.Prompt, nil
}

func (e *Engine) Retrieve(ctx context.Context, query string) (*Result, error) {
	terms := e.lexicon.Expand(query)

	var (
		semantic []domain.Passage
		keyword  []domain.ScoredPassage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if e.cfg.SemanticTopK == 0 {
			return nil
		}
		hits, err := e.semantic.Search(gctx, query, e.cfg.SemanticTopK)
		if err != nil {
			return fmt.Errorf("semantic search: %w", err)
		}
		if len(hits) > e.cfg.SemanticTopK {
			hits = hits[:e.cfg.SemanticTopK]
		}
		semantic = hits
		return nil
	})
	g.Go(func() error {
		if len(terms) == 0 {
			return nil
		}
		corpus, err := e.corpus.ScanPassages(gctx)
		if err != nil {
			return fmt.Errorf("scan corpus: %w", err)
		}
		keyword = MatchKeywords(terms, corpus, e.cfg.MinKeywordHits)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := MergeResults(keyword, semantic)
	packed := PackContext(merged, e.cfg.MaxContextLength)

	prompt, err := e.prompts.Build(packed.Text, query)
	if err != nil {
		return nil, err
	}

	stats := Stats{
		ExpandedTerms: len(terms),
		KeywordHits:   len(keyword),
		SemanticHits:  len(semantic),
		Merged:        len(merged),
		Included:      packed.Included,
		ContextChars:  len([]rune(packed.Text)),
		Truncated:     packed.Truncated,
	}
	e.logger.Debug("retrieval_completed",
		"expanded_terms", stats.ExpandedTerms,
		"keyword_hits", stats.KeywordHits,
		"semantic_hits", stats.SemanticHits,
		"merged", stats.Merged,
		"included", stats.Included,
		"context_chars", stats.ContextChars,
		"truncated", stats.Truncated,
	)
	if e.observer != nil {
		e.observer.ObserveRetrieval(stats)
	}

	return &Result{
		Terms:    terms,
		Passages: merged[:packed.Included],
		Context:  packed,
		Prompt:   prompt,
		Stats:    stats,
	}, nil
}
