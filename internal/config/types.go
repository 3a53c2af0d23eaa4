package config

import (
	"fmt"
	"time"
)

// Duration is a time.Duration written as "30s" or "1m30s" in config files
// and environment variables.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ScenarioConfig defines one optimization scenario.
type ScenarioConfig struct {
	Flags       string `koanf:"flags" yaml:"flags"`                       // Base compiler flags, e.g. "-O2"
	Title       string `koanf:"title" yaml:"title,omitempty"`             // Display name in indexes
	Description string `koanf:"description" yaml:"description,omitempty"` // One-line summary
	Order       int    `koanf:"order" yaml:"order,omitempty"`             // Sort key; ties broken by id
}

// ServiceConfig defines how the remote services are reached.
type ServiceConfig struct {
	BaseURL     string   `koanf:"base_url" yaml:"base_url"`
	ExplainURL  string   `koanf:"explain_url" yaml:"explain_url"`
	Language    string   `koanf:"language" yaml:"language,omitempty"` // Optional CE language id for compile requests
	Audience    string   `koanf:"audience" yaml:"audience"`           // "beginner" or "experienced"
	ExplainType string   `koanf:"explain_type" yaml:"explain_type"`   // "assembly" or "haiku"
	UserAgent   string   `koanf:"user_agent" yaml:"user_agent"`
	RateLimit   float64  `koanf:"rate_limit" yaml:"rate_limit"` // Requests per second across all workers; 0 disables pacing
	Burst       int      `koanf:"burst" yaml:"burst"`
	Timeout     Duration `koanf:"timeout" yaml:"timeout"` // Per remote call

	// Compiler Explorer bypassCache level for compiles: 0 none, 1 compile, 2 compile and execution
	BypassCompileCache int  `koanf:"bypass_compile_cache" yaml:"bypass_compile_cache"`
	BypassExplainCache bool `koanf:"bypass_explain_cache" yaml:"bypass_explain_cache"`
}

// RunConfig defines execution behavior.
type RunConfig struct {
	Concurrency      int      `koanf:"concurrency" yaml:"concurrency"`
	MaxRetries       int      `koanf:"max_retries" yaml:"max_retries"`
	InitialBackoff   Duration `koanf:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff       Duration `koanf:"max_backoff" yaml:"max_backoff"`
	BreakerThreshold int      `koanf:"breaker_threshold" yaml:"breaker_threshold"`
	Extensions       []string `koanf:"extensions" yaml:"extensions"`
	Journal          string   `koanf:"journal" yaml:"journal,omitempty"` // Run journal path; empty means <output>/.asmgallery/journal.db
}

// Config is the top-level configuration.
type Config struct {
	Scenarios map[string]ScenarioConfig `koanf:"scenarios" yaml:"scenarios"`
	Compilers []string                  `koanf:"compilers" yaml:"compilers"`
	Sections  map[string]string         `koanf:"sections" yaml:"sections,omitempty"` // Category -> display title
	Service   ServiceConfig             `koanf:"service" yaml:"service"`
	Run       RunConfig                 `koanf:"run" yaml:"run"`
}
