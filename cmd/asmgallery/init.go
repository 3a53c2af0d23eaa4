package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v2"

	"github.com/aristath/asmgallery/internal/config"
	"github.com/aristath/asmgallery/internal/orchestrator"
	"github.com/aristath/asmgallery/internal/tui"
)

func (a *App) initCommand() *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Write a starter configuration file",
		Action: a.initConfig,
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Ask for the main settings before writing",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing file",
			},
		},
	}
}

func (a *App) initConfig(c *cli.Context) error {
	path := c.String("config")
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fatal("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.StarterConfig()
	if c.Bool("interactive") {
		form := tui.NewSetupForm(cfg)
		if err := form.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return cli.Exit("aborted", orchestrator.ExitFatal)
			}
			return fatal("setup form: %v", err)
		}
		if err := form.Apply(); err != nil {
			return fatal("%v", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return fatal("%v", err)
	}
	if err := config.Save(cfg, path); err != nil {
		return fatal("%v", err)
	}

	fmt.Fprintf(a.stdout, "Wrote %s\n", path)
	return nil
}
