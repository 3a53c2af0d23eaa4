// Package config loads the batch configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/aristath/asmgallery/internal/scheduler"
)

// EnvPrefix prefixes environment overrides, e.g. ASMGALLERY_RUN_CONCURRENCY.
const EnvPrefix = "ASMGALLERY_"

// DefaultPath is the config file used when none is given.
const DefaultPath = "asmgallery.yaml"

const maxConfigFileSize = 1024 * 1024

// Load reads the YAML file at path, applies environment overrides and
// validates the result.
//
// Precedence (highest to lowest): environment, file, defaults.
//
//	ASMGALLERY_SERVICE_RATE_LIMIT -> service.rate_limit
//	ASMGALLERY_RUN_MAX_RETRIES    -> run.max_retries
//	ASMGALLERY_COMPILERS          -> compilers (comma-separated)
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, unmarshalConf(cfg)); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// unmarshalConf extends koanf's default decoding so list fields accept a
// comma-separated string, as environment variables deliver them.
func unmarshalConf(out *Config) koanf.UnmarshalConf {
	return koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           out,
			WeaklyTypedInput: true,
		},
	}
}

// envKey maps ASMGALLERY_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// idPattern restricts scenario and compiler ids, which become directory names.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)

// Validate checks the configuration for errors that would make a run meaningless.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Scenarios) == 0 {
		errs = append(errs, errors.New("scenarios: at least one scenario is required"))
	}
	for id := range c.Scenarios {
		if !idPattern.MatchString(id) || id == "." || id == ".." {
			errs = append(errs, fmt.Errorf("scenarios: invalid id %q", id))
		}
	}

	if len(c.Compilers) == 0 {
		errs = append(errs, errors.New("compilers: at least one compiler id is required"))
	}
	seen := make(map[string]bool, len(c.Compilers))
	for _, id := range c.Compilers {
		if !idPattern.MatchString(id) {
			errs = append(errs, fmt.Errorf("compilers: invalid id %q", id))
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("compilers: %q listed twice", id))
		}
		seen[id] = true
	}

	switch c.Service.Audience {
	case "beginner", "experienced":
	default:
		errs = append(errs, fmt.Errorf("service.audience: must be beginner or experienced, got %q", c.Service.Audience))
	}
	switch c.Service.ExplainType {
	case "assembly", "haiku":
	default:
		errs = append(errs, fmt.Errorf("service.explain_type: must be assembly or haiku, got %q", c.Service.ExplainType))
	}
	if c.Service.RateLimit < 0 {
		errs = append(errs, errors.New("service.rate_limit: must not be negative"))
	}
	if c.Service.BypassCompileCache < 0 || c.Service.BypassCompileCache > 2 {
		errs = append(errs, fmt.Errorf("service.bypass_compile_cache: must be 0, 1 or 2, got %d", c.Service.BypassCompileCache))
	}
	if c.Service.Timeout < 0 {
		errs = append(errs, errors.New("service.timeout: must not be negative"))
	}

	if c.Run.Concurrency < 1 {
		errs = append(errs, errors.New("run.concurrency: must be at least 1"))
	}
	if c.Run.MaxRetries < 0 {
		errs = append(errs, errors.New("run.max_retries: must not be negative"))
	}
	if c.Run.BreakerThreshold < 1 {
		errs = append(errs, errors.New("run.breaker_threshold: must be at least 1"))
	}
	if len(c.Run.Extensions) == 0 {
		errs = append(errs, errors.New("run.extensions: at least one extension is required"))
	}

	return errors.Join(errs...)
}

// ScenarioList returns the scenarios ordered by (order, id).
func (c *Config) ScenarioList() []scheduler.Scenario {
	list := make([]scheduler.Scenario, 0, len(c.Scenarios))
	for id, sc := range c.Scenarios {
		list = append(list, scheduler.Scenario{
			ID:          id,
			Flags:       sc.Flags,
			Title:       sc.Title,
			Description: sc.Description,
			Order:       sc.Order,
		})
	}
	return scheduler.SortScenarios(list)
}

// JournalPath resolves the run journal location for an output root.
func (c *Config) JournalPath(outputRoot string) string {
	if c.Run.Journal != "" {
		return c.Run.Journal
	}
	return filepath.Join(outputRoot, ".asmgallery", "journal.db")
}
