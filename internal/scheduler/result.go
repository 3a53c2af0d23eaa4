package scheduler

// ExplanationUnavailable is stored in place of the explanation when the
// explain step failed after a successful compile.
const ExplanationUnavailable = "_Explanation unavailable: the explain service did not return a result for this compilation._\n"

// Status is the resolution of a work item.
type Status int

const (
	StatusSucceeded Status = iota // Assembly and explanation present
	StatusPartial                 // Assembly present, explanation missing
	StatusFailed                  // No usable output
	StatusCached                  // Satisfied by a previous run
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusPartial:
		return "partial"
	case StatusFailed:
		return "failed"
	case StatusCached:
		return "cached"
	default:
		return "unknown"
	}
}

// Result is the outcome of executing one WorkItem.
// Exactly one of Success and Failure is non-nil.
type Result struct {
	Success *Success
	Failure *Failure
}

// Success carries the produced artifacts.
type Success struct {
	Assembly             string
	Explanation          string
	ExplanationAvailable bool
	InstructionSet       string // As reported by the compiler, if any
}

// Failure records why an item produced nothing.
type Failure struct {
	Reason    string
	Retriable bool
}

// Succeeded builds a full success.
func Succeeded(asm, explanation, isa string) Result {
	return Result{Success: &Success{Assembly: asm, Explanation: explanation, ExplanationAvailable: true, InstructionSet: isa}}
}

// Partial builds a success whose explanation is missing.
func Partial(asm, isa string) Result {
	return Result{Success: &Success{Assembly: asm, Explanation: ExplanationUnavailable, InstructionSet: isa}}
}

// Failed builds a failure.
func Failed(reason string, retriable bool) Result {
	return Result{Failure: &Failure{Reason: reason, Retriable: retriable}}
}

// Status classifies the result.
func (r Result) Status() Status {
	switch {
	case r.Success != nil && r.Success.ExplanationAvailable:
		return StatusSucceeded
	case r.Success != nil:
		return StatusPartial
	default:
		return StatusFailed
	}
}
