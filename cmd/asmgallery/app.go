package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/aristath/asmgallery/internal/config"
	"github.com/aristath/asmgallery/internal/orchestrator"
)

const AppName = "asmgallery"

// App wires the command line to the pipeline.
type App struct {
	logger zerolog.Logger
	stdout io.Writer
	stderr *heldWriter // Shared by logs and progress output
	term   io.Writer   // Unwrapped stderr, handed to the terminal view
	tty    bool        // stderr is a terminal
	quiet  bool
	cli    *cli.App
}

// New builds the application. Output goes to stdout; logs and progress to stderr.
func New(stdout, stderr io.Writer) *App {
	held := newHeldWriter(stderr)
	app := &App{
		logger: zerolog.New(zerolog.ConsoleWriter{Out: held, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger().Level(zerolog.InfoLevel),
		stdout: stdout,
		stderr: held,
		term:   stderr,
		tty:    isTerminal(stderr),
	}

	app.cli = &cli.App{
		Name:      AppName,
		Usage:     "Build an annotated assembly gallery from example sources",
		Writer:    stdout,
		ErrWriter: held,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose (debug) logging",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Only log warnings and errors, without progress lines",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format: console or json",
				Value: "console",
			},
		},
		Before: app.configureLogging,
		// Exit codes are mapped in Run so the process is never exited from
		// inside a command.
		ExitErrHandler: func(*cli.Context, error) {},
	}

	app.cli.Commands = []*cli.Command{
		app.runCommand(),
		app.compilersCommand(),
		app.historyCommand(),
		app.initCommand(),
	}
	return app
}

func (a *App) configureLogging(ctx *cli.Context) error {
	switch ctx.String("log-format") {
	case "console":
	case "json":
		a.logger = zerolog.New(a.stderr).With().Timestamp().Logger()
	default:
		return cli.Exit(fmt.Sprintf("unknown log format %q", ctx.String("log-format")), orchestrator.ExitFatal)
	}

	level := zerolog.InfoLevel
	switch {
	case ctx.Bool("verbose"):
		level = zerolog.DebugLevel
	case ctx.Bool("quiet"):
		level = zerolog.WarnLevel
		a.quiet = true
	}
	a.logger = a.logger.Level(level)
	return nil
}

// Run executes the command line and returns the process exit code.
func (a *App) Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx, args)
}

// RunContext is Run with a caller-supplied context.
func (a *App) RunContext(ctx context.Context, args []string) int {
	err := a.cli.RunContext(ctx, args)
	if err == nil {
		return orchestrator.ExitOK
	}

	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			fmt.Fprintln(a.stderr, "Error:", msg)
		}
		return exitErr.ExitCode()
	}
	fmt.Fprintln(a.stderr, "Error:", err)
	return orchestrator.ExitFatal
}

// fatal wraps a configuration or validation error.
func fatal(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf(format, args...), orchestrator.ExitFatal)
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the YAML configuration",
		Value:   config.DefaultPath,
		EnvVars: []string{"ASMGALLERY_CONFIG"},
	}
}
