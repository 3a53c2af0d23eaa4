package scheduler

import (
	"fmt"

	"github.com/aristath/asmgallery/internal/source"
)

// Scenario is a named optimization configuration.
type Scenario struct {
	ID          string // Unique identifier, e.g. "O2"
	Flags       string // Base compiler flags
	Title       string
	Description string
	Order       int // Sort key; ties broken by ID
}

// CompilerSpec identifies a remote compiler and its target.
type CompilerSpec struct {
	ID       string // Compiler Explorer id, e.g. "cg152"
	Name     string // Human label from the catalog
	Arch     string // Instruction set label, e.g. "amd64"
	Language string // Catalog language id, e.g. "c"
}

// Label returns the human name, falling back to the id.
func (c CompilerSpec) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Key identifies one work item. It doubles as the result cache key.
type Key struct {
	File     string // source.File.RelPath
	Compiler string
	Scenario string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Scenario, k.Compiler, k.File)
}

// WorkItem is one (file, compiler, scenario) compilation request.
type WorkItem struct {
	File     source.File
	Compiler CompilerSpec
	Scenario Scenario
	Flags    string // Effective flags after directive resolution
}

// Key returns the item's identity.
func (w WorkItem) Key() Key {
	return Key{File: w.File.RelPath, Compiler: w.Compiler.ID, Scenario: w.Scenario.ID}
}
