package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v2"

	"github.com/aristath/asmgallery/internal/config"
	"github.com/aristath/asmgallery/internal/explorer"
)

func (a *App) compilersCommand() *cli.Command {
	return &cli.Command{
		Name:   "compilers",
		Usage:  "List the compilers offered by the Compiler Explorer instance",
		Action: a.listCompilers,
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "lang",
				Usage: "Only list compilers for this language id, e.g. c or c++",
			},
			&cli.StringFlag{
				Name:  "filter",
				Usage: "Only list compilers whose id or name contains this text",
			},
		},
	}
}

func (a *App) listCompilers(c *cli.Context) error {
	svc, err := loadService(c.String("config"))
	if err != nil {
		return fatal("%v", err)
	}

	client := explorer.NewClient(explorer.Config{
		BaseURL:   svc.BaseURL,
		UserAgent: svc.UserAgent,
		Timeout:   svc.Timeout.Std(),
	})
	catalog, err := client.ListCompilers(c.Context, c.String("lang"))
	if err != nil {
		return fatal("listing compilers: %v", err)
	}

	filter := strings.ToLower(c.String("filter"))
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "LANG", "ARCH")
	shown := 0
	for _, info := range catalog {
		if filter != "" && !strings.Contains(strings.ToLower(info.ID+" "+info.Name), filter) {
			continue
		}
		arch := info.InstructionSet
		if arch == "" {
			arch = explorer.DetectInstructionSet(info.ID)
		}
		t.Row(info.ID, info.Name, info.Lang, arch)
		shown++
	}

	fmt.Fprintln(a.stdout, t.Render())
	fmt.Fprintf(a.stdout, "%d of %d compilers\n", shown, len(catalog))
	return nil
}

// loadService returns the service settings from the config file, or the
// defaults when there is no config file yet.
func loadService(path string) (config.ServiceConfig, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.DefaultConfig().Service, nil
	}
	if err != nil {
		return config.ServiceConfig{}, err
	}
	return cfg.Service, nil
}
