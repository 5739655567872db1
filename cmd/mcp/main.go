package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	mcpadapter "github.com/kirillkom/manual-assistant/internal/adapters/mcp"
	"github.com/kirillkom/manual-assistant/internal/bootstrap"
	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/observability/logging"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// Stdout carries the MCP protocol.
	logger := logging.New(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("mcp_failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.WithService("mcp"), bootstrap.WithLogger(logger), bootstrap.WithoutQueue())
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Chat.Warmup(ctx); err != nil {
		logger.Warn("generator_warmup_failed", "error", err)
	}

	return mcpadapter.NewServer(version, app.Chat, app.Chat, app.Engine, logger).ServeStdio()
}
