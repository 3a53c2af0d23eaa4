package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/aristath/asmgallery/internal/archive"
	"github.com/aristath/asmgallery/internal/config"
	"github.com/aristath/asmgallery/internal/events"
	"github.com/aristath/asmgallery/internal/explorer"
	"github.com/aristath/asmgallery/internal/orchestrator"
	"github.com/aristath/asmgallery/internal/persistence"
	"github.com/aristath/asmgallery/internal/progress"
	"github.com/aristath/asmgallery/internal/scheduler"
	"github.com/aristath/asmgallery/internal/source"
	"github.com/aristath/asmgallery/internal/telemetry"
	"github.com/aristath/asmgallery/internal/tui"
)

func (a *App) runCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Compile and explain every source under every scenario and compiler",
		Action: a.run,
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "src",
				Usage:    "Source root to scan",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "out",
				Usage:    "Output root for the gallery",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Exit with code 3 when retriable failures remain",
			},
			&cli.BoolFlag{
				Name:  "retry-partial",
				Usage: "Re-run cached items that have no explanation",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write Prometheus metrics in textfile format to this path",
			},
			&cli.StringFlag{
				Name:  "journal",
				Usage: "Run journal path (default <out>/.asmgallery/journal.db)",
			},
			&cli.BoolFlag{
				Name:  "no-journal",
				Usage: "Do not record the run",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show a live terminal view instead of progress lines",
			},
		},
	}
}

func (a *App) run(c *cli.Context) error {
	ctx := c.Context
	srcRoot, outRoot := c.String("src"), c.String("out")

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fatal("%v", err)
	}
	if j := c.String("journal"); j != "" {
		cfg.Run.Journal = j
	}

	files, err := source.Discover(srcRoot, cfg.Run.Extensions, a.logger)
	if err != nil {
		return fatal("discovering sources: %v", err)
	}

	client := explorer.NewClient(explorer.Config{
		BaseURL:    cfg.Service.BaseURL,
		ExplainURL: cfg.Service.ExplainURL,
		UserAgent:  cfg.Service.UserAgent,
		Timeout:    cfg.Service.Timeout.Std(),
		RateLimit:  cfg.Service.RateLimit,
		Burst:      cfg.Service.Burst,
	})

	compilers, err := orchestrator.ValidateCompilers(ctx, client, cfg.Compilers)
	if err != nil {
		return fatal("%v", err)
	}

	scenarios := cfg.ScenarioList()
	items, err := scheduler.Enumerate(files, compilers, scenarios)
	if err != nil {
		return fatal("%v", err)
	}
	a.logger.Info().
		Int("files", len(files)).
		Int("compilers", len(compilers)).
		Int("scenarios", len(scenarios)).
		Int("items", len(items)).
		Msg("Enumerated work items")

	writer := archive.NewWriter(outRoot, a.logger)
	if err := writer.WriteIndex(scenarios, compilers, cfg.Sections); err != nil {
		return fatal("writing indexes: %v", err)
	}

	var store persistence.Store
	if !c.Bool("no-journal") {
		s, err := persistence.NewSQLiteStore(ctx, cfg.JournalPath(outRoot))
		if err != nil {
			return fatal("opening run journal: %v", err)
		}
		defer s.Close()
		store = s
	}

	var metrics *telemetry.Metrics
	if c.String("metrics-file") != "" {
		metrics = telemetry.NewMetrics()
	}

	bus := events.NewEventBus()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := orchestrator.NewRunner(orchestrator.RunnerConfig{
		Concurrency: cfg.Run.Concurrency,
		Retry: orchestrator.RetryConfig{
			MaxRetries:          cfg.Run.MaxRetries,
			InitialInterval:     cfg.Run.InitialBackoff.Std(),
			MaxInterval:         cfg.Run.MaxBackoff.Std(),
			Multiplier:          orchestrator.DefaultRetryConfig().Multiplier,
			RandomizationFactor: orchestrator.DefaultRetryConfig().RandomizationFactor,
		},
		Breaker: orchestrator.BreakerConfig{
			Threshold:   uint32(cfg.Run.BreakerThreshold),
			OpenTimeout: cfg.Run.MaxBackoff.Std(),
		},
		Explain: orchestrator.ExplainOptions{
			Audience:    cfg.Service.Audience,
			Type:        cfg.Service.ExplainType,
			BypassCache: cfg.Service.BypassExplainCache,
		},
		Language:           cfg.Service.Language,
		BypassCompileCache: cfg.Service.BypassCompileCache,
		RetryPartial:       c.Bool("retry-partial"),
		Service:            client,
		Cache:              archive.NewCache(writer),
		EventBus:           bus,
		Store:              store,
		Metrics:            metrics,
		Logger:             a.logger,
		SourceRoot:         srcRoot,
		OutputRoot:         outRoot,
	})

	display := a.startDisplay(c.Bool("tui"), bus, cancel)
	summary, runErr := runner.Run(runCtx, items)
	bus.Close()
	display.wait()

	printSummary(a.stdout, summary)

	if path := c.String("metrics-file"); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			a.logger.Error().Err(err).Str("path", path).Msg("Failed to write metrics")
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return cli.Exit("run cancelled; rerun to resume", orchestrator.ExitFatal)
		}
		return fatal("%v", runErr)
	}
	if code := summary.ExitCode(c.Bool("strict")); code != orchestrator.ExitOK {
		return cli.Exit("", code)
	}
	return nil
}

// display renders progress while the runner works.
type display struct {
	done chan struct{}
}

func (d display) wait() { <-d.done }

// startDisplay subscribes a progress renderer to the bus. It returns once
// the subscription exists so no event is missed.
func (a *App) startDisplay(useTUI bool, bus *events.EventBus, cancel context.CancelFunc) display {
	d := display{done: make(chan struct{})}
	interactive := a.tty

	if useTUI && interactive {
		// Logs would scribble over the alternate screen; replay them once it closes.
		a.stderr.Hold()
		p := tea.NewProgram(tui.New(bus, cancel), tea.WithAltScreen(), tea.WithOutput(a.term))
		go func() {
			defer close(d.done)
			_, err := p.Run()
			_ = a.stderr.Release()
			if err != nil {
				a.logger.Error().Err(err).Msg("Terminal view failed")
			}
		}()
		return d
	}
	if useTUI {
		a.logger.Warn().Msg("Terminal view needs a terminal on stderr, printing progress lines")
	}
	if a.quiet {
		close(d.done)
		return d
	}

	sub := bus.Subscribe(events.TopicItem, 1024)
	printer := progress.NewPrinter(a.stderr, interactive)
	go func() {
		defer close(d.done)
		defer printer.Finish()
		for evt := range sub {
			if resolved, ok := evt.(events.ItemResolvedEvent); ok {
				printer.Print(resolved.Progress)
			}
		}
	}()
	return d
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func printSummary(w io.Writer, s orchestrator.Summary) {
	fmt.Fprintf(w, "Run %s finished in %s\n", s.RunID, progress.FormatDuration(s.Elapsed))
	fmt.Fprintf(w, "  items:     %d\n", s.Total)
	fmt.Fprintf(w, "  cached:    %d\n", s.Cached)
	fmt.Fprintf(w, "  succeeded: %d\n", s.Succeeded)
	fmt.Fprintf(w, "  partial:   %d\n", s.Partial)
	fmt.Fprintf(w, "  failed:    %d (%d retriable, %d permanent)\n", s.Failed(), s.RetriableFailures, s.PermanentFailures)
	if s.Cancelled > 0 {
		fmt.Fprintf(w, "  cancelled: %d\n", s.Cancelled)
	}
	fmt.Fprintf(w, "  written:   %s\n", humanize.Bytes(uint64(s.BytesWritten)))

	if len(s.Failures) == 0 {
		return
	}
	fmt.Fprintln(w, "Failures:")
	for _, f := range s.Failures {
		kind := "permanent"
		if f.Retriable {
			kind = "retriable"
		}
		fmt.Fprintf(w, "  %s [%s] %s\n", f.Key, kind, firstLine(f.Reason))
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
