package config

import (
	"time"

	"github.com/aristath/asmgallery/internal/explorer"
	"github.com/aristath/asmgallery/internal/source"
)

// DefaultConfig returns the service and run defaults. Scenarios and
// compilers have no defaults and must come from the config file.
func DefaultConfig() *Config {
	return &Config{
		Scenarios: map[string]ScenarioConfig{},
		Sections:  map[string]string{},
		Service: ServiceConfig{
			BaseURL:     explorer.DefaultBaseURL,
			ExplainURL:  explorer.DefaultExplainURL,
			Audience:    "beginner",
			ExplainType: "assembly",
			UserAgent:   explorer.DefaultUserAgent,
			RateLimit:   2,
			Burst:       2,
			Timeout:     Duration(explorer.DefaultTimeout),
		},
		Run: RunConfig{
			Concurrency:      4,
			MaxRetries:       3,
			InitialBackoff:   Duration(time.Second),
			MaxBackoff:       Duration(30 * time.Second),
			BreakerThreshold: 5,
			Extensions:       append([]string(nil), source.DefaultExtensions...),
		},
	}
}

// StarterConfig returns the file written by "asmgallery init": the defaults
// plus a small scenario and compiler matrix to edit.
func StarterConfig() *Config {
	cfg := DefaultConfig()
	cfg.Scenarios = map[string]ScenarioConfig{
		"O0": {Flags: "-O0", Title: "No optimization", Description: "Straightforward translation of the source.", Order: 0},
		"O2": {Flags: "-O2", Title: "Optimized", Description: "The level most release builds use.", Order: 1},
		"O3": {Flags: "-O3 -march=x86-64-v3", Title: "Aggressive", Description: "Vectorization and wider instruction sets.", Order: 2},
	}
	cfg.Compilers = []string{"cg152", "clang1910"}
	cfg.Sections = map[string]string{
		source.RootCategory: "General",
	}
	return cfg
}
