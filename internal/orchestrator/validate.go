package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/asmgallery/internal/explorer"
	"github.com/aristath/asmgallery/internal/scheduler"
)

// UnknownCompilersError lists configured compiler ids the remote catalog
// does not offer. It is fatal: no work is executed.
type UnknownCompilersError struct {
	IDs []string
}

func (e *UnknownCompilersError) Error() string {
	return fmt.Sprintf("compiler ids not found on this Compiler Explorer instance: %s", strings.Join(e.IDs, ", "))
}

// ValidateCompilers resolves ids against the remote catalog with a single
// ListCompilers call. The result follows the order of ids. Every unknown
// id is reported at once in an *UnknownCompilersError.
func ValidateCompilers(ctx context.Context, svc explorer.Service, ids []string) ([]scheduler.CompilerSpec, error) {
	catalog, err := svc.ListCompilers(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("fetching compiler catalog: %w", err)
	}

	byID := make(map[string]explorer.CompilerInfo, len(catalog))
	for _, c := range catalog {
		byID[c.ID] = c
	}

	specs := make([]scheduler.CompilerSpec, 0, len(ids))
	var missing []string
	for _, id := range ids {
		info, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		arch := info.InstructionSet
		if arch == "" {
			arch = explorer.DetectInstructionSet(id)
		}
		specs = append(specs, scheduler.CompilerSpec{ID: id, Name: info.Name, Arch: arch, Language: info.Lang})
	}

	if len(missing) > 0 {
		return nil, &UnknownCompilersError{IDs: missing}
	}
	return specs, nil
}
