package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aristath/asmgallery/internal/scheduler"
)

// WriteIndex writes README.md at the root of the tree and one per scenario.
// sections maps category names to display titles; categories without an
// entry are listed under their own name.
func (w *Writer) WriteIndex(scenarios []scheduler.Scenario, compilers []scheduler.CompilerSpec, sections map[string]string) error {
	if err := os.MkdirAll(w.layout.Root, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", w.layout.Root, err)
	}
	if err := writeAtomic(filepath.Join(w.layout.Root, "README.md"), []byte(topIndex(scenarios, compilers, sections))); err != nil {
		return err
	}

	for _, sc := range scenarios {
		dir := w.layout.ScenarioDir(sc.ID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		if err := writeAtomic(filepath.Join(dir, "README.md"), []byte(scenarioIndex(sc, compilers))); err != nil {
			return err
		}
	}
	return nil
}

func topIndex(scenarios []scheduler.Scenario, compilers []scheduler.CompilerSpec, sections map[string]string) string {
	var b strings.Builder
	b.WriteString("# Assembly gallery\n\n")

	b.WriteString("## Scenarios\n\n")
	b.WriteString("| Scenario | Flags | Description |\n|---|---|---|\n")
	for _, sc := range scenarios {
		title := sc.Title
		if title == "" {
			title = sc.ID
		}
		fmt.Fprintf(&b, "| [%s](./%s/README.md) | `%s` | %s |\n", title, sc.ID, sc.Flags, sc.Description)
	}

	b.WriteString("\n## Compilers\n\n")
	b.WriteString("| Compiler ID | Name | Arch |\n|---|---|---|\n")
	for _, c := range compilers {
		fmt.Fprintf(&b, "| `%s` | %s | %s |\n", c.ID, c.Label(), c.Arch)
	}

	if len(sections) > 0 {
		names := make([]string, 0, len(sections))
		for k := range sections {
			names = append(names, k)
		}
		sort.Strings(names)

		b.WriteString("\n## Sections\n\n")
		for _, k := range names {
			fmt.Fprintf(&b, "- `%s`: %s\n", k, sections[k])
		}
	}
	return b.String()
}

func scenarioIndex(sc scheduler.Scenario, compilers []scheduler.CompilerSpec) string {
	var b strings.Builder
	title := sc.Title
	if title == "" {
		title = sc.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Flags: `%s`\n\n", sc.Flags)
	if sc.Description != "" {
		b.WriteString(sc.Description + "\n\n")
	}
	b.WriteString("| Compiler | Arch | Link |\n|---|---|---|\n")
	for _, c := range compilers {
		fmt.Fprintf(&b, "| %s | %s | [%s](./%s/) |\n", c.Label(), c.Arch, c.ID, c.ID)
	}
	return b.String()
}
