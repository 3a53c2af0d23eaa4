// Package directive parses the per-file compilation hints embedded at the top
// of gallery sources.
//
// A hint block is a C comment opened with "@gallery-hints". Each line holds
// one "key: value" pair after the decorative leading asterisks are stripped.
// Plain values are taken literally to the end of the line; values opening
// with "[" or "{", and indented "- item" lines, are read as YAML. Lines with
// no key are skipped.
//
//	/* @gallery-hints
//	 *   replace-flags: /O2 /Qspectre
//	 *   compiler-only: vc_v19_44_VS17_14_x64, vc_v19_44_VS17_14_x86
//	 */
package directive

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recognized keys. Both dash and underscore spellings are accepted.
const (
	KeyExtraFlags      = "extra-flags"
	KeyReplaceFlags    = "replace-flags"
	KeyCompilerOnly    = "compiler-only"
	KeyCompilerExclude = "compiler-exclude"
	KeyScenarioOnly    = "scenario-only"
	KeyScenarioExclude = "scenario-exclude"
)

var (
	blockRE = regexp.MustCompile(`(?s)/\*\s*@gallery-hints\b(.*?)\*/`)
	lineRE  = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*)\s*:(.*)$`)
)

// Set is an unordered collection of identifiers.
type Set map[string]struct{}

// NewSet builds a Set from ids, dropping blanks.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Has reports whether id is in the set. A nil set contains nothing.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Directive restricts or modifies the work items generated for one file.
// Nil sets and a nil ReplaceFlags mean "not specified".
type Directive struct {
	ExtraFlags      string
	ReplaceFlags    *string
	CompilerOnly    Set
	CompilerExclude Set
	ScenarioOnly    Set
	ScenarioExclude Set
}

// Conflicting reports whether both compiler-only and compiler-exclude are set.
// compiler-only wins in that case.
func (d *Directive) Conflicting() bool {
	return d != nil && d.CompilerOnly != nil && d.CompilerExclude != nil
}

// Allows reports whether the (compiler, scenario) pair survives the
// directive's filters. A nil directive allows everything.
func (d *Directive) Allows(compilerID, scenarioID string) bool {
	if d == nil {
		return true
	}
	if d.ScenarioExclude.Has(scenarioID) {
		return false
	}
	if d.ScenarioOnly != nil && !d.ScenarioOnly.Has(scenarioID) {
		return false
	}
	if d.CompilerOnly != nil {
		return d.CompilerOnly.Has(compilerID)
	}
	if d.CompilerExclude.Has(compilerID) {
		return false
	}
	return true
}

// Flags resolves the effective flag string for a scenario's base flags.
func (d *Directive) Flags(base string) string {
	if d == nil {
		return strings.TrimSpace(base)
	}
	if d.ReplaceFlags != nil {
		return strings.TrimSpace(*d.ReplaceFlags)
	}
	return strings.TrimSpace(base + " " + d.ExtraFlags)
}

// Warning describes a hint block that could not be used.
type Warning struct {
	Key     string
	Message string
}

func (w Warning) String() string {
	if w.Key == "" {
		return w.Message
	}
	return fmt.Sprintf("%s: %s", w.Key, w.Message)
}

// Parse extracts the directive from source text.
//
// It returns nil when the text has no hint block. A malformed block also
// yields nil together with the warnings explaining why; callers treat the
// file as having no directive.
func Parse(source string) (*Directive, []Warning) {
	m := blockRE.FindStringSubmatch(source)
	if m == nil {
		return nil, nil
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal([]byte(normalize(m[1])), &raw); err != nil {
		return nil, []Warning{{Message: fmt.Sprintf("malformed hint block: %v", err)}}
	}

	d := &Directive{}
	var warnings []Warning
	for rawKey, value := range raw {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(rawKey)), "_", "-")
		if !known(key) {
			continue
		}
		if value == nil {
			warnings = append(warnings, Warning{Key: key, Message: "key has no value"})
			continue
		}

		switch key {
		case KeyExtraFlags, KeyReplaceFlags:
			s, ok := scalar(value)
			if !ok {
				warnings = append(warnings, Warning{Key: key, Message: fmt.Sprintf("expected a flag string, got %T", value)})
				continue
			}
			if key == KeyExtraFlags {
				d.ExtraFlags = s
			} else {
				d.ReplaceFlags = &s
			}
		default:
			set, err := toSet(value)
			if err != nil {
				warnings = append(warnings, Warning{Key: key, Message: err.Error()})
				continue
			}
			switch key {
			case KeyCompilerOnly:
				d.CompilerOnly = set
			case KeyCompilerExclude:
				d.CompilerExclude = set
			case KeyScenarioOnly:
				d.ScenarioOnly = set
			case KeyScenarioExclude:
				d.ScenarioExclude = set
			}
		}
	}

	if len(warnings) > 0 {
		sort.Slice(warnings, func(i, j int) bool { return warnings[i].Key < warnings[j].Key })
		return nil, warnings
	}
	return d, nil
}

// normalize removes the " * " gutter that C block comments carry on each
// line and rewrites the body as YAML. Plain values are quoted so characters
// such as " #" survive; lines that are neither a key nor a list item are
// dropped.
func normalize(body string) string {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimLeft(line, "*"))
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "- ") {
			out = append(out, "  "+line)
			continue
		}
		m := lineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key, value := m[1], strings.TrimSpace(m[2])
		switch {
		case value == "":
			out = append(out, key+":")
		case strings.ContainsAny(value[:1], "[{\"'"):
			out = append(out, key+": "+value)
		default:
			out = append(out, key+": "+strconv.Quote(value))
		}
	}
	return strings.Join(out, "\n")
}

func known(key string) bool {
	switch key {
	case KeyExtraFlags, KeyReplaceFlags, KeyCompilerOnly, KeyCompilerExclude, KeyScenarioOnly, KeyScenarioExclude:
		return true
	}
	return false
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case int, int64, float64, bool:
		return fmt.Sprint(t), true
	}
	return "", false
}

// toSet accepts "a, b" or a YAML sequence of scalars.
func toSet(v any) (Set, error) {
	switch t := v.(type) {
	case []any:
		ids := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := scalar(item)
			if !ok {
				return nil, fmt.Errorf("list entries must be identifiers, got %T", item)
			}
			ids = append(ids, s)
		}
		return NewSet(ids...), nil
	default:
		s, ok := scalar(v)
		if !ok {
			return nil, fmt.Errorf("expected a comma-separated list, got %T", v)
		}
		return NewSet(strings.Split(s, ",")...), nil
	}
}
