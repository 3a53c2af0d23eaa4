package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_NoBlock(t *testing.T) {
	d, warnings := Parse("/* plain comment */\nint main(void) { return 0; }\n")
	assert.Nil(t, d)
	assert.Empty(t, warnings)
}

func TestParse_FullBlock(t *testing.T) {
	src := `/* @gallery-hints
 *   extra-flags: -D_FORTIFY_SOURCE=2
 *   compiler-only: cg152, clang1910
 *   scenario-exclude: O0
 */
#include <stdio.h>
`
	d, warnings := Parse(src)
	require.Empty(t, warnings)
	require.NotNil(t, d)

	assert.Equal(t, "-D_FORTIFY_SOURCE=2", d.ExtraFlags)
	assert.Nil(t, d.ReplaceFlags)
	assert.Equal(t, []string{"cg152", "clang1910"}, d.CompilerOnly.Sorted())
	assert.Equal(t, []string{"O0"}, d.ScenarioExclude.Sorted())
	assert.Nil(t, d.CompilerExclude)
}

func TestParse_ReplaceFlagsWithColon(t *testing.T) {
	src := "/* @gallery-hints\n *   replace-flags: /O2 /guard:cf\n */\n"
	d, warnings := Parse(src)
	require.Empty(t, warnings)
	require.NotNil(t, d)
	require.NotNil(t, d.ReplaceFlags)
	assert.Equal(t, "/O2 /guard:cf", *d.ReplaceFlags)
}

func TestParse_ListSyntaxAndUnderscoreKeys(t *testing.T) {
	src := "/* @gallery-hints\n compiler_exclude: [avrg1520, vc_x64]\n scenario-only:\n   - O2\n   - O3\n */"
	d, warnings := Parse(src)
	require.Empty(t, warnings)
	require.NotNil(t, d)
	assert.Equal(t, []string{"avrg1520", "vc_x64"}, d.CompilerExclude.Sorted())
	assert.Equal(t, []string{"O2", "O3"}, d.ScenarioOnly.Sorted())
}

func TestParse_UnknownKeysIgnored(t *testing.T) {
	src := "/* @gallery-hints\n *   future-key: whatever\n *   extra-flags: -fwrapv\n */"
	d, warnings := Parse(src)
	require.Empty(t, warnings)
	require.NotNil(t, d)
	assert.Equal(t, "-fwrapv", d.ExtraFlags)
}

func TestParse_HashInFlagsIsLiteral(t *testing.T) {
	src := "/* @gallery-hints\n *   extra-flags: -DTAG=\"a #b\" -DN=1\n */"
	d, warnings := Parse(src)
	require.Empty(t, warnings)
	require.NotNil(t, d)
	assert.Equal(t, `-DTAG="a #b" -DN=1`, d.ExtraFlags)
}

func TestParse_ProseLinesSkipped(t *testing.T) {
	src := `/* @gallery-hints
 *   This example needs MSVC because it uses __declspec
 *   compiler-only: vc_x64, vc_x86
 */`
	d, warnings := Parse(src)
	require.Empty(t, warnings)
	require.NotNil(t, d)
	assert.Equal(t, []string{"vc_x64", "vc_x86"}, d.CompilerOnly.Sorted())
}

func TestParse_MalformedFallsBackToNoDirective(t *testing.T) {
	tests := []struct {
		name string
		src  string
		key  string
	}{
		{
			name: "key without value",
			src:  "/* @gallery-hints\n *   extra-flags:\n *   compiler-only: cg152\n */",
			key:  KeyExtraFlags,
		},
		{
			name: "map where flags expected",
			src:  "/* @gallery-hints\n *   replace-flags: {a: b}\n */",
			key:  KeyReplaceFlags,
		},
		{
			name: "not yaml",
			src:  "/* @gallery-hints\n *   compiler-only: [cg152\n */",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, warnings := Parse(tt.src)
			assert.Nil(t, d)
			require.NotEmpty(t, warnings)
			if tt.key != "" {
				assert.Equal(t, tt.key, warnings[0].Key)
			}
		})
	}
}

func TestDirective_Allows(t *testing.T) {
	tests := []struct {
		name     string
		d        *Directive
		compiler string
		scenario string
		want     bool
	}{
		{"nil directive", nil, "cg152", "O0", true},
		{"scenario excluded", &Directive{ScenarioExclude: NewSet("O0")}, "cg152", "O0", false},
		{"scenario not excluded", &Directive{ScenarioExclude: NewSet("O0")}, "cg152", "O2", true},
		{"scenario only miss", &Directive{ScenarioOnly: NewSet("O3")}, "cg152", "O2", false},
		{"compiler only hit", &Directive{CompilerOnly: NewSet("cg152")}, "cg152", "O2", true},
		{"compiler only miss", &Directive{CompilerOnly: NewSet("cg152")}, "clang1910", "O2", false},
		{"compiler excluded", &Directive{CompilerExclude: NewSet("avrg1520")}, "avrg1520", "O2", false},
		{
			name:     "only wins over exclude",
			d:        &Directive{CompilerOnly: NewSet("cg152"), CompilerExclude: NewSet("cg152")},
			compiler: "cg152",
			scenario: "O2",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Allows(tt.compiler, tt.scenario))
		})
	}
}

func TestDirective_Flags(t *testing.T) {
	replace := "-O2 -Qspectre"

	assert.Equal(t, "-O2", (*Directive)(nil).Flags("-O2"))
	assert.Equal(t, "-O2 -fwrapv", (&Directive{ExtraFlags: "-fwrapv"}).Flags("-O2"))
	assert.Equal(t, "-O2 -Qspectre", (&Directive{ReplaceFlags: &replace, ExtraFlags: "-x"}).Flags("-O0"))
	assert.Equal(t, "-fwrapv", (&Directive{ExtraFlags: "-fwrapv"}).Flags(""))
}
