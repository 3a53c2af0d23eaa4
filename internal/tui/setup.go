package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/aristath/asmgallery/internal/config"
)

// SetupForm collects the starter settings written by "asmgallery init".
type SetupForm struct {
	form   *huh.Form
	config *config.Config

	// Form field bindings (strings for Huh)
	compilers   string
	audience    string
	explainType string
	concurrency string
	rateLimit   string
	baseURL     string
}

// NewSetupForm creates a form pre-filled from cfg. Apply writes the answers
// back into cfg.
func NewSetupForm(cfg *config.Config) *SetupForm {
	f := &SetupForm{
		config:      cfg,
		compilers:   strings.Join(cfg.Compilers, ", "),
		audience:    cfg.Service.Audience,
		explainType: cfg.Service.ExplainType,
		concurrency: strconv.Itoa(cfg.Run.Concurrency),
		rateLimit:   strconv.FormatFloat(cfg.Service.RateLimit, 'f', -1, 64),
		baseURL:     cfg.Service.BaseURL,
	}
	f.buildForm()
	return f
}

// buildForm constructs the Huh form with all setup fields.
func (f *SetupForm) buildForm() {
	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("compilers").
				Title("Compiler ids").
				Description("Comma-separated Compiler Explorer ids").
				Value(&f.compilers).
				Placeholder("cg152, clang1910").
				Validate(func(s string) error {
					if len(splitList(s)) == 0 {
						return fmt.Errorf("at least one compiler id is required")
					}
					return nil
				}),

			huh.NewInput().
				Key("baseURL").
				Title("Compiler Explorer URL").
				Value(&f.baseURL).
				Placeholder("https://godbolt.org"),
		).Title("Compilers"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("audience").
				Title("Audience").
				Options(
					huh.NewOption("Beginner", "beginner"),
					huh.NewOption("Experienced", "experienced"),
				).
				Value(&f.audience),

			huh.NewSelect[string]().
				Key("explainType").
				Title("Explanation style").
				Options(
					huh.NewOption("Assembly walkthrough", "assembly"),
					huh.NewOption("Haiku", "haiku"),
				).
				Value(&f.explainType),
		).Title("Explanations"),

		huh.NewGroup(
			huh.NewInput().
				Key("concurrency").
				Title("Concurrent items").
				Value(&f.concurrency).
				Placeholder("4").
				Validate(validatePositiveInt),

			huh.NewInput().
				Key("rateLimit").
				Title("Requests per second").
				Description("0 disables pacing").
				Value(&f.rateLimit).
				Placeholder("2").
				Validate(validateRate),
		).Title("Execution"),
	)
}

// Run shows the form on the terminal.
func (f *SetupForm) Run() error {
	return f.form.Run()
}

// Apply copies the answers back into the config.
func (f *SetupForm) Apply() error {
	if err := validatePositiveInt(f.concurrency); err != nil {
		return fmt.Errorf("concurrency: %w", err)
	}
	if err := validateRate(f.rateLimit); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	concurrency, _ := strconv.Atoi(strings.TrimSpace(f.concurrency))
	rate, _ := strconv.ParseFloat(strings.TrimSpace(f.rateLimit), 64)

	f.config.Compilers = splitList(f.compilers)
	f.config.Service.Audience = f.audience
	f.config.Service.ExplainType = f.explainType
	f.config.Run.Concurrency = concurrency
	f.config.Service.RateLimit = rate
	if url := strings.TrimSpace(f.baseURL); url != "" {
		f.config.Service.BaseURL = url
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("must be a whole number of at least 1")
	}
	return nil
}

func validateRate(s string) error {
	r, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || r < 0 {
		return fmt.Errorf("must be a non-negative number")
	}
	return nil
}
