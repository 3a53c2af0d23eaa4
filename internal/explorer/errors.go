package explorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Op   string // e.g. "POST /api/compiler/cg152/compile"
	Code int
	Body string // Truncated response body
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: HTTP %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.Code, e.Body)
}

// CompileError reports a compilation the compiler itself rejected
// (non-zero exit code), typically because of bad flags or source.
type CompileError struct {
	CompilerID string
	ExitCode   int
	Stderr     string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiler %s exited with code %d: %s", e.CompilerID, e.ExitCode, e.Stderr)
}

// ExplainError reports an explain reply whose status was not "success".
type ExplainError struct {
	Status  string
	Message string
}

func (e *ExplainError) Error() string {
	return fmt.Sprintf("explain status %q: %s", e.Status, e.Message)
}

// ErrDecode wraps responses that could not be parsed.
var ErrDecode = errors.New("decoding response")

// IsRetriable reports whether err is worth another attempt: timeouts,
// dropped connections, throttling and server-side errors. Client errors,
// compiler rejections and undecodable payloads are permanent.
//
// Cancellation of the caller's own context must be checked separately;
// IsRetriable treats a deadline as a per-call timeout.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code == http.StatusRequestTimeout || se.Code >= 500
	}

	var ce *CompileError
	var ee *ExplainError
	if errors.As(err, &ce) || errors.As(err, &ee) || errors.Is(err, ErrDecode) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	// Other transport failures (bad scheme, TLS verification) will not
	// change on retry.
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}
