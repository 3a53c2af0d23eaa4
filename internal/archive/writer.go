package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/asmgallery/internal/scheduler"
)

// ErrFailureNotStored is returned by Write when given a failed result.
var ErrFailureNotStored = errors.New("failed results are not archived")

// Meta is the completion marker of a slot. It carries no timestamps so that
// rewriting an identical result produces identical bytes.
type Meta struct {
	File                 string `json:"file"`
	Category             string `json:"category"`
	Compiler             string `json:"compiler"`
	CompilerName         string `json:"compiler_name,omitempty"`
	Arch                 string `json:"arch,omitempty"`
	InstructionSet       string `json:"instruction_set,omitempty"`
	Scenario             string `json:"scenario"`
	Flags                string `json:"flags"`
	ExplanationAvailable bool   `json:"explanation_available"`
}

// Writer persists successful results into the output tree.
type Writer struct {
	layout Layout
	logger zerolog.Logger
}

// NewWriter creates a writer rooted at root.
func NewWriter(root string, logger zerolog.Logger) *Writer {
	return &Writer{layout: Layout{Root: root}, logger: logger}
}

// Layout returns the writer's path mapping.
func (w *Writer) Layout() Layout {
	return w.layout
}

// Write stores a successful result. Each file is written to a temporary file
// in the target directory and renamed into place, and meta.json goes last, so
// an interrupted write never leaves a slot that looks complete.
func (w *Writer) Write(item scheduler.WorkItem, res scheduler.Result) error {
	if res.Success == nil {
		return ErrFailureNotStored
	}
	p := w.layout.PathsFor(item)

	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", p.Dir, err)
	}

	meta, err := json.MarshalIndent(Meta{
		File:                 item.File.RelPath,
		Category:             item.File.Category,
		Compiler:             item.Compiler.ID,
		CompilerName:         item.Compiler.Name,
		Arch:                 item.Compiler.Arch,
		InstructionSet:       res.Success.InstructionSet,
		Scenario:             item.Scenario.ID,
		Flags:                item.Flags,
		ExplanationAvailable: res.Success.ExplanationAvailable,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding meta for %s: %w", item.Key(), err)
	}
	meta = append(meta, '\n')

	// Remove a stale marker first so a crash mid-rewrite reads as a miss.
	if err := os.Remove(p.Meta); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", p.Meta, err)
	}

	writes := []struct {
		path string
		data []byte
	}{
		{p.Source, []byte(item.File.Text)},
		{p.Asm, []byte(res.Success.Assembly)},
		{p.Explain, []byte(res.Success.Explanation)},
		{p.Meta, meta},
	}
	for _, f := range writes {
		if err := writeAtomic(f.path, f.data); err != nil {
			return err
		}
	}

	w.logger.Debug().Str("key", item.Key().String()).Str("dir", p.Dir).Msg("Archived result")
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
