package scheduler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aristath/asmgallery/internal/source"
)

// ErrDuplicateKey is returned when two work items share an identity.
var ErrDuplicateKey = errors.New("duplicate work item key")

// SortScenarios orders scenarios by Order, then ID. The input is not modified.
func SortScenarios(scenarios []Scenario) []Scenario {
	out := append([]Scenario(nil), scenarios...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Enumerate computes the work items for files × compilers × scenarios.
//
// Order is file-major, then compiler, then scenario, each following the
// order of the given slices, so identical inputs always produce the same
// sequence. Per-file directives drop combinations and resolve flags.
// The inputs are only read.
func Enumerate(files []source.File, compilers []CompilerSpec, scenarios []Scenario) ([]WorkItem, error) {
	items := make([]WorkItem, 0, len(files)*len(compilers)*len(scenarios))
	seen := make(map[Key]struct{}, cap(items))

	for _, f := range files {
		for _, c := range compilers {
			for _, sc := range scenarios {
				if !f.Directive.Allows(c.ID, sc.ID) {
					continue
				}

				item := WorkItem{
					File:     f,
					Compiler: c,
					Scenario: sc,
					Flags:    f.Directive.Flags(sc.Flags),
				}

				key := item.Key()
				if _, dup := seen[key]; dup {
					return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
				}
				seen[key] = struct{}{}

				items = append(items, item)
			}
		}
	}

	return items, nil
}
