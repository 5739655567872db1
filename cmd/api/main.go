package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/manual-assistant/internal/adapters/http"
	"github.com/kirillkom/manual-assistant/internal/bootstrap"
	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/observability/logging"
)

const warmupRetryInterval = 15 * time.Second

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api_failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.WithService("api"), bootstrap.WithLogger(logger))
	if err != nil {
		return err
	}
	defer app.Close()

	go warmup(ctx, app, logger)

	router, err := httpadapter.NewRouter(cfg, app.IngestUC, app.Chat, app.Manuals,
		httpadapter.WithMetrics(app.Metrics),
		httpadapter.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		return err
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	server := &http.Server{
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api_listening", "addr", listener.Addr().String(), "max_connections", cfg.APIMaxConnections)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_error", "error", err)
	}
	return nil
}

// warmup keeps probing the generator until one model answers. Chat requests
// get 503 until then.
func warmup(ctx context.Context, app *bootstrap.App, logger *slog.Logger) {
	for {
		err := app.Chat.Warmup(ctx)
		if err == nil {
			logger.Info("generator_ready")
			return
		}
		logger.Warn("generator_warmup_failed", "error", err, "retry_in", warmupRetryInterval.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(warmupRetryInterval):
		}
	}
}
