// Package explorer talks to a Compiler Explorer instance and its companion
// explain service.
package explorer

import (
	"context"
	"time"
)

// Service defines the remote operations the pipeline consumes.
type Service interface {
	// ListCompilers returns the instance's compiler catalog. An empty
	// language returns every compiler.
	ListCompilers(ctx context.Context, language string) ([]CompilerInfo, error)

	// Compile compiles source with the given flags and returns the disassembly.
	// A non-zero compiler exit code is reported as *CompileError.
	Compile(ctx context.Context, req CompileRequest) (CompileResponse, error)

	// Explain asks for a narrative explanation of the assembly.
	// A reply whose status is not "success" is reported as *ExplainError.
	Explain(ctx context.Context, req ExplainRequest) (ExplainResponse, error)
}

// Config defines the connection settings for a Client.
type Config struct {
	BaseURL    string        // Compiler Explorer root, e.g. https://godbolt.org
	ExplainURL string        // Explain service root
	UserAgent  string
	Timeout    time.Duration // Per-request timeout; zero means no timeout
	RateLimit  float64       // Requests per second shared by all calls; zero disables pacing
	Burst      int
}

// Defaults for Config fields left empty.
const (
	DefaultBaseURL    = "https://godbolt.org"
	DefaultExplainURL = "https://api.compiler-explorer.com/explain"
	DefaultUserAgent  = "asmgallery/1.0"
	DefaultTimeout    = 60 * time.Second
)
