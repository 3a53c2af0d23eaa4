package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/aristath/asmgallery/internal/config"
	"github.com/aristath/asmgallery/internal/persistence"
	"github.com/aristath/asmgallery/internal/progress"
)

func (a *App) historyCommand() *cli.Command {
	return &cli.Command{
		Name:   "history",
		Usage:  "List previous runs and the failures of one of them",
		Action: a.history,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Usage: "Output root whose journal to read",
			},
			&cli.StringFlag{
				Name:  "journal",
				Usage: "Run journal path (overrides --out)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of runs to list",
				Value: 10,
			},
			&cli.StringFlag{
				Name:  "run",
				Usage: "Run id whose failures to show (default: latest)",
			},
		},
	}
}

func (a *App) history(c *cli.Context) error {
	path := c.String("journal")
	if path == "" {
		if c.String("out") == "" {
			return fatal("history needs --out or --journal")
		}
		path = config.DefaultConfig().JournalPath(c.String("out"))
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(a.stdout, "No runs recorded")
		return nil
	}

	store, err := persistence.NewSQLiteStore(c.Context, path)
	if err != nil {
		return fatal("opening run journal: %v", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(c.Context, c.Int("limit"))
	if err != nil {
		return fatal("listing runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "No runs recorded")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RUN", "STARTED", "DURATION", "ITEMS", "CACHED", "OK", "PARTIAL", "FAILED", "CANCELLED")
	for _, r := range runs {
		duration := "running"
		if !r.FinishedAt.IsZero() {
			duration = progress.FormatDuration(r.FinishedAt.Sub(r.StartedAt))
		}
		t.Row(
			shortID(r.ID),
			humanize.Time(r.StartedAt),
			duration,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Cached),
			strconv.Itoa(r.Totals.Succeeded),
			strconv.Itoa(r.Totals.Partial),
			fmt.Sprintf("%d/%d", r.Totals.FailedRetriable, r.Totals.FailedPermanent),
			strconv.Itoa(r.Totals.Cancelled),
		)
	}
	fmt.Fprintln(a.stdout, t.Render())

	run, err := store.GetRun(c.Context, c.String("run"))
	if err != nil {
		return fatal("%v", err)
	}
	failures, err := store.Failures(c.Context, run.ID)
	if err != nil {
		return fatal("listing failures: %v", err)
	}
	if len(failures) == 0 {
		fmt.Fprintf(a.stdout, "Run %s had no failures\n", run.ID)
		return nil
	}

	fmt.Fprintf(a.stdout, "Failures in run %s:\n", run.ID)
	for _, f := range failures {
		kind := "permanent"
		if f.Retriable {
			kind = "retriable"
		}
		fmt.Fprintf(a.stdout, "  %s [%s/%s] %s after %d attempts: %s\n",
			f.File, f.Compiler, f.Scenario, kind, f.Attempts, firstLine(f.Reason))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
