package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/kirillkom/manual-assistant/internal/bootstrap"
	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
	"github.com/kirillkom/manual-assistant/internal/infrastructure/lexicon"
	"github.com/kirillkom/manual-assistant/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "manualctl:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "manualctl",
		Usage:     "Operate the manual assistant from the command line",
		Writer:    out,
		ErrWriter: os.Stderr,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Ingest every manual listed in a sources file and wait until it is indexed",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "sources",
						Aliases:  []string{"s"},
						Usage:    "Path to the YAML sources file",
						Required: true,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the indexed manuals",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "prompt-only",
						Usage: "Print the grounding prompt instead of generating an answer",
					},
					&cli.StringFlag{
						Name:  "session",
						Usage: "Session id recorded with the answer",
					},
				},
			},
			{
				Name:      "expand",
				Usage:     "Print the search terms a question expands to",
				ArgsUsage: "<question>",
				Action:    expandCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "lexicon",
						Usage:   "Lexicon YAML file; the built-in lexicon when empty",
						EnvVars: []string{"LEXICON_PATH"},
					},
				},
			},
		},
	}
}

func question(c *cli.Context) (string, error) {
	q := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if q == "" {
		return "", errors.New("a question is required")
	}
	return q, nil
}

func openApp(c *cli.Context) (*bootstrap.App, error) {
	cfg := config.Load()
	// Stdout is reserved for command output.
	logger := logging.New(os.Stderr, "manualctl", cfg.LogLevel)
	slog.SetDefault(logger)
	return bootstrap.New(c.Context, cfg,
		bootstrap.WithService("manualctl"),
		bootstrap.WithLogger(logger),
		bootstrap.WithoutQueue(),
	)
}

func ingestCommand(c *cli.Context) error {
	sources, err := config.LoadSources(c.String("sources"))
	if err != nil {
		return err
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	for _, src := range sources.Manuals {
		id, err := ingestOne(c.Context, app, src)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", src.File, err)
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", id, src.Model, src.File)
	}
	return nil
}

func ingestOne(ctx context.Context, app *bootstrap.App, src config.ManualSource) (string, error) {
	f, err := os.Open(src.File)
	if err != nil {
		return "", err
	}
	defer f.Close()

	manual, err := app.IngestUC.Upload(ctx, ports.ManualUpload{
		Filename: filepath.Base(src.File),
		Model:    src.Model,
		Pages:    src.Pages(),
		Body:     f,
	})
	if err != nil {
		return "", err
	}
	if err := app.ProcessUC.ProcessByID(ctx, manual.ID); err != nil {
		return manual.ID, err
	}
	return manual.ID, nil
}

func askCommand(c *cli.Context) error {
	q, err := question(c)
	if err != nil {
		return err
	}
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	if c.Bool("prompt-only") {
		prompt, err := app.Chat.BuildPrompt(c.Context, q)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, prompt)
		return nil
	}

	if err := app.Chat.Warmup(c.Context); err != nil {
		return err
	}
	reply, err := app.Chat.Ask(c.Context, c.String("session"), q)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, reply.Answer)
	return nil
}

func expandCommand(c *cli.Context) error {
	q, err := question(c)
	if err != nil {
		return err
	}
	lex, err := lexicon.Load(c.String("lexicon"))
	if err != nil {
		return err
	}
	for _, term := range lex.Expand(q) {
		fmt.Fprintln(c.App.Writer, term)
	}
	return nil
}
