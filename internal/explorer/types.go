package explorer

import "strings"

// CompilerInfo is one entry of the /api/compilers catalog.
type CompilerInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Lang           string `json:"lang"`
	InstructionSet string `json:"instructionSet,omitempty"`
}

// Line is a single line of compiler output.
type Line struct {
	Text string `json:"text"`
}

// CompileRequest describes one compilation.
type CompileRequest struct {
	CompilerID  string
	Source      string
	Flags       string
	Language    string // Optional CE language id
	BypassCache int    // 0 uses caches, 1 skips the compile cache, 2 also skips execution
}

// compilePayload is the JSON body for POST /api/compiler/<id>/compile.
type compilePayload struct {
	Source              string         `json:"source"`
	Options             compileOptions `json:"options"`
	Lang                string         `json:"lang,omitempty"`
	AllowStoreCodeDebug bool           `json:"allowStoreCodeDebug"`
	BypassCache         int            `json:"bypassCache"`
}

type compileOptions struct {
	UserArguments     string            `json:"userArguments"`
	CompilerOptions   compilerOptions   `json:"compilerOptions"`
	Filters           compileFilters    `json:"filters"`
	Tools             []any             `json:"tools"`
	Libraries         []any             `json:"libraries"`
	ExecuteParameters executeParameters `json:"executeParameters"`
}

type compilerOptions struct {
	SkipAsm         bool  `json:"skipAsm"`
	ExecutorRequest bool  `json:"executorRequest"`
	Overrides       []any `json:"overrides"`
}

type compileFilters struct {
	Binary       bool `json:"binary"`
	BinaryObject bool `json:"binaryObject"`
	CommentOnly  bool `json:"commentOnly"`
	Demangle     bool `json:"demangle"`
	Directives   bool `json:"directives"`
	Execute      bool `json:"execute"`
	Intel        bool `json:"intel"`
	Labels       bool `json:"labels"`
	LibraryCode  bool `json:"libraryCode"`
	Trim         bool `json:"trim"`
	DebugCalls   bool `json:"debugCalls"`
}

type executeParameters struct {
	Args         []string `json:"args"`
	Stdin        string   `json:"stdin"`
	RuntimeTools []any    `json:"runtimeTools"`
}

func newCompilePayload(req CompileRequest) compilePayload {
	p := compilePayload{
		Source: req.Source,
		Lang:   req.Language,
		Options: compileOptions{
			UserArguments:   req.Flags,
			CompilerOptions: compilerOptions{Overrides: []any{}},
			Filters: compileFilters{
				CommentOnly: true,
				Demangle:    true,
				Directives:  true,
				Intel:       true,
				Labels:      true,
			},
			Tools:             []any{},
			Libraries:         []any{},
			ExecuteParameters: executeParameters{Args: []string{}, RuntimeTools: []any{}},
		},
		AllowStoreCodeDebug: true,
		BypassCache:         req.BypassCache,
	}
	return p
}

// CompileResponse is the subset of the compile result the pipeline uses.
type CompileResponse struct {
	Code           int    `json:"code"`
	Asm            []Line `json:"asm"`
	Stderr         []Line `json:"stderr"`
	InstructionSet string `json:"instructionSet,omitempty"`
}

// AsmText joins the assembly lines, with a trailing newline when non-empty.
func (r CompileResponse) AsmText() string {
	return joinLines(r.Asm)
}

// StderrText joins the diagnostics.
func (r CompileResponse) StderrText() string {
	return joinLines(r.Stderr)
}

func joinLines(lines []Line) string {
	if len(lines) == 0 {
		return ""
	}
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.TrimRight(strings.Join(texts, "\n"), " \t\n") + "\n"
}

// ExplainRequest is the explain service payload.
type ExplainRequest struct {
	Language           string   `json:"language"`
	Compiler           string   `json:"compiler"`
	Code               string   `json:"code"`
	CompilationOptions []string `json:"compilationOptions"`
	InstructionSet     string   `json:"instructionSet"`
	Asm                []Line   `json:"asm"`
	Audience           string   `json:"audience"`
	Explanation        string   `json:"explanation"`
	BypassCache        bool     `json:"bypassCache"`
}

// ExplainResponse is the explain service reply.
type ExplainResponse struct {
	Status      string `json:"status"`
	Explanation string `json:"explanation"`
	Message     string `json:"message,omitempty"`
}
