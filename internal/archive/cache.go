package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aristath/asmgallery/internal/scheduler"
)

// Cache answers "has this item already been produced?" from the output tree.
// It holds no state of its own; the files are the index.
type Cache struct {
	writer *Writer
}

// NewCache returns a cache over the writer's tree. Put delegates to the writer.
func NewCache(w *Writer) *Cache {
	return &Cache{writer: w}
}

// Has reports whether item's slot is complete.
func (c *Cache) Has(item scheduler.WorkItem) bool {
	_, err := os.Stat(c.writer.layout.PathsFor(item).Meta)
	return err == nil
}

// Get loads a cached result. The boolean is false when the slot is not complete.
func (c *Cache) Get(item scheduler.WorkItem) (scheduler.Result, bool, error) {
	p := c.writer.layout.PathsFor(item)

	raw, err := os.ReadFile(p.Meta)
	if errors.Is(err, os.ErrNotExist) {
		return scheduler.Result{}, false, nil
	}
	if err != nil {
		return scheduler.Result{}, false, fmt.Errorf("reading %s: %w", p.Meta, err)
	}

	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return scheduler.Result{}, false, fmt.Errorf("decoding %s: %w", p.Meta, err)
	}

	asm, err := os.ReadFile(p.Asm)
	if err != nil {
		return scheduler.Result{}, false, fmt.Errorf("slot %s marked complete: %w", item.Key(), err)
	}
	explanation, err := os.ReadFile(p.Explain)
	if err != nil {
		return scheduler.Result{}, false, fmt.Errorf("slot %s marked complete: %w", item.Key(), err)
	}

	return scheduler.Result{Success: &scheduler.Success{
		Assembly:             string(asm),
		Explanation:          string(explanation),
		ExplanationAvailable: meta.ExplanationAvailable,
		InstructionSet:       meta.InstructionSet,
	}}, true, nil
}

// Put records a result. Failures are not cached, so the next run retries them.
func (c *Cache) Put(item scheduler.WorkItem, res scheduler.Result) error {
	if res.Success == nil {
		return nil
	}
	return c.writer.Write(item, res)
}
