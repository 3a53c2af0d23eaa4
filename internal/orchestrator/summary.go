package orchestrator

import (
	"time"

	"github.com/aristath/asmgallery/internal/scheduler"
)

// Process exit codes derived from a run.
const (
	ExitOK        = 0 // Every item resolved or was cached
	ExitFatal     = 1 // Configuration or validation error, nothing executed
	ExitPermanent = 2 // At least one item failed permanently
	ExitRetriable = 3 // Strict mode only: transient failures remain
)

// ItemFailure describes one failed item.
type ItemFailure struct {
	Key       scheduler.Key
	Reason    string
	Retriable bool
}

// Summary counts the resolutions of a run.
type Summary struct {
	RunID             string
	Total             int // Items enumerated
	Cached            int
	Succeeded         int
	Partial           int
	RetriableFailures int
	PermanentFailures int
	Cancelled         int // Never dispatched or abandoned on interrupt
	Failures          []ItemFailure
	BytesWritten      int64
	Elapsed           time.Duration
}

// Failed returns the number of failed items.
func (s Summary) Failed() int {
	return s.RetriableFailures + s.PermanentFailures
}

// ExitCode maps the summary to a process exit code. Retriable failures only
// fail the process in strict mode; the next run picks them up.
func (s Summary) ExitCode(strict bool) int {
	switch {
	case s.PermanentFailures > 0:
		return ExitPermanent
	case strict && s.RetriableFailures > 0:
		return ExitRetriable
	default:
		return ExitOK
	}
}
