package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/manual-assistant/internal/bootstrap"
	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/observability/logging"
	"github.com/kirillkom/manual-assistant/internal/observability/metrics"
)

const processTimeout = 10 * time.Minute

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("worker_failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.WithService("worker"), bootstrap.WithLogger(logger))
	if err != nil {
		return err
	}
	defer app.Close()
	if app.Queue == nil {
		return errors.New("NATS_URL is required for the worker")
	}

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := startMetricsServer(cfg.WorkerMetricsPort, workerMetrics, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	return app.Queue.SubscribeManualUploaded(ctx, func(handlerCtx context.Context, manualID string) error {
		var uploadedAt time.Time
		if manual, err := app.Manuals.GetByID(handlerCtx, manualID); err == nil {
			uploadedAt = manual.CreatedAt
		}

		start := time.Now()
		workerMetrics.StartManual(uploadedAt)
		processCtx, cancel := context.WithTimeout(handlerCtx, processTimeout)
		defer cancel()

		err := app.ProcessUC.ProcessByID(processCtx, manualID)
		workerMetrics.FinishManual(time.Since(start), err)
		if err == nil {
			logger.Info("manual_processed", "manual_id", manualID, "duration_ms", time.Since(start).Milliseconds())
		}
		return err
	})
}

func startMetricsServer(port string, m *metrics.WorkerMetrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	return server
}
