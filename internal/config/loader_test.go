package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
scenarios:
  O2:
    flags: -O2
    title: Optimized
    order: 1
  O0:
    flags: -O0
compilers: [cg152, clang1910]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "asmgallery.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	defaults := DefaultConfig()
	if !reflect.DeepEqual(cfg.Service, defaults.Service) {
		t.Errorf("service = %+v, want defaults %+v", cfg.Service, defaults.Service)
	}
	if !reflect.DeepEqual(cfg.Run, defaults.Run) {
		t.Errorf("run = %+v, want defaults %+v", cfg.Run, defaults.Run)
	}
	if got := cfg.Scenarios["O2"]; got.Flags != "-O2" || got.Title != "Optimized" || got.Order != 1 {
		t.Errorf("scenario O2 = %+v", got)
	}
	if !reflect.DeepEqual(cfg.Compilers, []string{"cg152", "clang1910"}) {
		t.Errorf("compilers = %v", cfg.Compilers)
	}
	if !reflect.DeepEqual(cfg.Run.Extensions, []string{".c", ".cc"}) {
		t.Errorf("extensions = %v", cfg.Run.Extensions)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
service:
  audience: experienced
  timeout: 90s
  rate_limit: 0.5
run:
  concurrency: 8
  max_backoff: 1m
  extensions: [.c]
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Service.Audience != "experienced" {
		t.Errorf("audience = %q", cfg.Service.Audience)
	}
	if cfg.Service.Timeout.Std() != 90*time.Second {
		t.Errorf("timeout = %v", cfg.Service.Timeout.Std())
	}
	if cfg.Service.RateLimit != 0.5 {
		t.Errorf("rate_limit = %v", cfg.Service.RateLimit)
	}
	if cfg.Run.Concurrency != 8 {
		t.Errorf("concurrency = %d", cfg.Run.Concurrency)
	}
	if cfg.Run.MaxBackoff.Std() != time.Minute {
		t.Errorf("max_backoff = %v", cfg.Run.MaxBackoff.Std())
	}
	if !reflect.DeepEqual(cfg.Run.Extensions, []string{".c"}) {
		t.Errorf("extensions = %v", cfg.Run.Extensions)
	}
	// Untouched fields keep their defaults.
	if cfg.Service.ExplainType != "assembly" || cfg.Run.MaxRetries != 3 {
		t.Errorf("defaults lost: %+v %+v", cfg.Service, cfg.Run)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ASMGALLERY_RUN_CONCURRENCY", "12")
	t.Setenv("ASMGALLERY_SERVICE_BASE_URL", "http://localhost:10240")
	t.Setenv("ASMGALLERY_SERVICE_TIMEOUT", "5s")
	t.Setenv("ASMGALLERY_COMPILERS", "g141,g142")
	t.Setenv("ASMGALLERY_RUN_EXTENSIONS", ".c,.cc")

	cfg, err := Load(writeConfig(t, minimalYAML+"run:\n  concurrency: 2\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Run.Concurrency != 12 {
		t.Errorf("concurrency = %d, want env value 12", cfg.Run.Concurrency)
	}
	if cfg.Service.BaseURL != "http://localhost:10240" {
		t.Errorf("base_url = %q", cfg.Service.BaseURL)
	}
	if cfg.Service.Timeout.Std() != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Service.Timeout.Std())
	}
	if !reflect.DeepEqual(cfg.Compilers, []string{"g141", "g142"}) {
		t.Errorf("compilers = %v", cfg.Compilers)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed yaml", "scenarios: [unclosed", "parsing"},
		{"bad duration", minimalYAML + "service:\n  timeout: soon\n", "decoding"},
		{"no scenarios", "compilers: [cg152]\n", "at least one scenario"},
		{"no compilers", "scenarios:\n  O2:\n    flags: -O2\n", "at least one compiler"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"starter is valid", func(*Config) {}, ""},
		{"duplicate compiler", func(c *Config) { c.Compilers = append(c.Compilers, "cg152") }, `"cg152" listed twice`},
		{"path in compiler id", func(c *Config) { c.Compilers = []string{"../x"} }, "invalid id"},
		{"dot scenario id", func(c *Config) { c.Scenarios[".."] = ScenarioConfig{Flags: "-O1"} }, "invalid id"},
		{"bad audience", func(c *Config) { c.Service.Audience = "expert" }, "service.audience"},
		{"bad explain type", func(c *Config) { c.Service.ExplainType = "poem" }, "service.explain_type"},
		{"zero concurrency", func(c *Config) { c.Run.Concurrency = 0 }, "run.concurrency"},
		{"negative retries", func(c *Config) { c.Run.MaxRetries = -1 }, "run.max_retries"},
		{"negative rate", func(c *Config) { c.Service.RateLimit = -1 }, "service.rate_limit"},
		{"bypass level out of range", func(c *Config) { c.Service.BypassCompileCache = 3 }, "service.bypass_compile_cache"},
		{"zero breaker", func(c *Config) { c.Run.BreakerThreshold = 0 }, "run.breaker_threshold"},
		{"no extensions", func(c *Config) { c.Run.Extensions = nil }, "run.extensions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := StarterConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestScenarioList_Ordered(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scenarios = map[string]ScenarioConfig{
		"O3": {Flags: "-O3", Order: 2},
		"Os": {Flags: "-Os", Order: 1},
		"O1": {Flags: "-O1", Order: 1},
		"O0": {Flags: "-O0"},
	}

	var ids []string
	for _, sc := range cfg.ScenarioList() {
		ids = append(ids, sc.ID)
	}
	if want := []string{"O0", "O1", "Os", "O3"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
}

func TestJournalPath(t *testing.T) {
	cfg := DefaultConfig()
	if got, want := cfg.JournalPath("out"), filepath.Join("out", ".asmgallery", "journal.db"); got != want {
		t.Errorf("JournalPath = %q, want %q", got, want)
	}
	cfg.Run.Journal = "/tmp/j.db"
	if got := cfg.JournalPath("out"); got != "/tmp/j.db" {
		t.Errorf("JournalPath = %q", got)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"ASMGALLERY_RUN_MAX_RETRIES":    "run.max_retries",
		"ASMGALLERY_SERVICE_RATE_LIMIT": "service.rate_limit",
		"ASMGALLERY_COMPILERS":          "compilers",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
