package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
	"github.com/kirillkom/manual-assistant/internal/core/retrieval"
	"github.com/kirillkom/manual-assistant/internal/core/usecase"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/corpus"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/extractor"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/lexicon"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/manual-assistant/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	// Queue is nil when NATS_URL is empty.
	Queue     ports.MessageQueue
	Manuals   ports.ManualRepository
	Engine    *retrieval.Engine
	Chat      *usecase.ChatUseCase
	IngestUC  *usecase.IngestManualUseCase
	ProcessUC *usecase.ProcessManualUseCase

	closeFn func()
}

type options struct {
	service string
	logger  *slog.Logger
	noQueue bool
}

type Option func(*options)

// WithService names the process in metrics.
func WithService(service string) Option {
	return func(o *options) { o.service = service }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithoutQueue skips the NATS connection for processes that ingest inline.
func WithoutQueue() Option {
	return func(o *options) { o.noQueue = true }
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{service: "api", logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpMetrics := metrics.NewHTTPServerMetrics(o.service)
	executor := resilience.NewExecutor(cfg.Resilience,
		resilience.WithLogger(o.logger),
		resilience.WithStateListener(httpMetrics.ObserveBreaker),
	)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	closers := []func(){func() { _ = db.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	app, err := build(ctx, cfg, o, db, executor, httpMetrics, &closers)
	if err != nil {
		closeAll()
		return nil, err
	}
	app.closeFn = closeAll
	return app, nil
}

func build(
	ctx context.Context,
	cfg config.Config,
	o options,
	db *sql.DB,
	executor *resilience.Executor,
	httpMetrics *metrics.HTTPServerMetrics,
	closers *[]func(),
) (*App, error) {
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	manuals := postgres.NewManualRepository(db)
	passages := postgres.NewPassageRepository(db)
	chats := postgres.NewChatRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var queue ports.MessageQueue
	if !o.noQueue && cfg.NATSURL != "" {
		q, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{Executor: executor, Logger: o.logger})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		*closers = append(*closers, q.Close)
		queue = q
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.WithExecutor(executor))
	embedder := ollama.NewEmbedder(ollamaClient)
	generator, err := newGenerator(ctx, cfg, ollamaClient, executor, o.logger)
	if err != nil {
		return nil, err
	}
	vectors := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithExecutor(executor))

	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		return nil, err
	}
	prompts, err := newPromptBuilder(cfg)
	if err != nil {
		return nil, err
	}
	snapshot := corpus.NewCached(passages, cfg.CorpusCacheTTL)

	engine, err := retrieval.NewEngine(
		cfg.Retrieval(),
		lex,
		usecase.NewSemanticSearch(embedder, vectors),
		snapshot,
		prompts,
		retrieval.WithObserver(httpMetrics),
		retrieval.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	chat := usecase.NewChatUseCase(engine, generator,
		usecase.WithChatLog(chats),
		usecase.WithChatObserver(httpMetrics),
		usecase.WithChatLogger(o.logger),
	)

	processUC, err := usecase.NewProcessManualUseCase(
		usecase.ProcessConfig{EmbedBatchSize: cfg.EmbedBatchSize, EmbedWorkers: cfg.EmbedWorkers},
		manuals,
		extractor.New(storage),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		vectors,
		passages,
		usecase.OnManualReady(func(string) { snapshot.Invalidate() }),
	)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, processUC.Close)

	return &App{
		Config:    cfg,
		Logger:    o.logger,
		Metrics:   httpMetrics,
		Queue:     queue,
		Manuals:   manuals,
		Engine:    engine,
		Chat:      chat,
		IngestUC:  usecase.NewIngestManualUseCase(manuals, storage, queue),
		ProcessUC: processUC,
	}, nil
}

func newGenerator(
	ctx context.Context,
	cfg config.Config,
	ollamaClient *ollama.Client,
	executor *resilience.Executor,
	logger *slog.Logger,
) (ports.AnswerGenerator, error) {
	switch cfg.GenerationProvider {
	case config.ProviderOllama:
		return ollama.NewGenerator(ollamaClient), nil
	default:
		g, err := gemini.New(ctx, cfg.GoogleAPIKey, cfg.GeminiModels,
			gemini.WithExecutor(executor),
			gemini.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("init gemini generator: %w", err)
		}
		return g, nil
	}
}

func newPromptBuilder(cfg config.Config) (*retrieval.PromptBuilder, error) {
	opts := retrieval.PromptOptions{
		Domain:   cfg.PromptDomain,
		Language: cfg.PromptLanguage,
		Products: cfg.ProductNames,
	}
	if cfg.PromptTemplatePath != "" {
		raw, err := os.ReadFile(cfg.PromptTemplatePath)
		if err != nil {
			return nil, fmt.Errorf("read prompt template: %w", err)
		}
		opts.Template = string(raw)
	}
	return retrieval.NewPromptBuilder(opts)
}

// Ready reports whether the answer generator passed warmup.
func (a *App) Ready() bool {
	return a.Chat != nil && a.Chat.Ready()
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
