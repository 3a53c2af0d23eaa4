package explorer

import "strings"

// isaRules map compiler-id fragments to instruction sets. More specific
// fragments come first; the first match wins.
var isaRules = []struct {
	fragments []string
	isa       string
}{
	{[]string{"avr"}, "avr"},
	{[]string{"arm64", "aarch64", "armv8"}, "aarch64"},
	{[]string{"arm"}, "arm32"},
	{[]string{"mips64"}, "mips64"},
	{[]string{"mips"}, "mips"},
	{[]string{"sparc64"}, "sparc64"},
	{[]string{"sparc"}, "sparc"},
	{[]string{"riscv64", "rv64"}, "riscv64"},
	{[]string{"riscv", "rv32"}, "riscv32"},
	{[]string{"powerpc64", "ppc64"}, "powerpc64"},
	{[]string{"powerpc", "ppc"}, "powerpc"},
	{[]string{"x86", "i386", "i686"}, "x86"},
}

// DetectInstructionSet guesses the target from a compiler id when the
// catalog does not report one. Most hosted compilers target x86-64.
func DetectInstructionSet(compilerID string) string {
	id := strings.ToLower(compilerID)
	for _, r := range isaRules {
		for _, f := range r.fragments {
			if strings.Contains(id, f) {
				return r.isa
			}
		}
	}
	return "amd64"
}
