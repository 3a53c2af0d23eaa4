// Package archive writes the output tree and reads it back as the result cache.
//
// Every work item owns one slot:
//
//	<root>/<scenario>/<compiler>/<category>/<stem>.asm
//	<root>/<scenario>/<compiler>/<category>/<stem>.explain.md
//	<root>/<scenario>/<compiler>/<category>/<stem>.src<ext>
//	<root>/<scenario>/<compiler>/<category>/<stem>.meta.json
//
// meta.json is written last; its presence marks the slot complete.
package archive

import (
	"path/filepath"

	"github.com/aristath/asmgallery/internal/scheduler"
)

// Paths are the artifact locations of one work item.
type Paths struct {
	Dir     string
	Asm     string
	Explain string
	Source  string
	Meta    string
}

// Layout maps work items to their slot under Root.
type Layout struct {
	Root string
}

// PathsFor returns the slot of item.
func (l Layout) PathsFor(item scheduler.WorkItem) Paths {
	dir := filepath.Join(l.Root, item.Scenario.ID, item.Compiler.ID, filepath.FromSlash(item.File.Category))
	base := filepath.Join(dir, item.File.Stem)
	return Paths{
		Dir:     dir,
		Asm:     base + ".asm",
		Explain: base + ".explain.md",
		Source:  base + ".src" + item.File.Ext,
		Meta:    base + ".meta.json",
	}
}

// ScenarioDir is the directory holding every artifact of one scenario.
func (l Layout) ScenarioDir(scenarioID string) string {
	return filepath.Join(l.Root, scenarioID)
}
