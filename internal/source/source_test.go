package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("creating dir for %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", rel, err)
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "loops/unroll.c", "int f(void) { return 1; }\n")
	writeFile(t, root, "security/wrapv.c", "/* @gallery-hints\n *   extra-flags: -fwrapv\n */\nint g;\n")
	writeFile(t, root, "top.cpp", "int h;\n")
	writeFile(t, root, "loops/notes.txt", "ignored\n")
	writeFile(t, root, ".git/hooks/x.c", "ignored\n")

	files, err := Discover(root, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}

	wantRel := []string{"loops/unroll.c", "security/wrapv.c", "top.cpp"}
	for i, f := range files {
		if f.RelPath != wantRel[i] {
			t.Errorf("files[%d].RelPath = %q, want %q", i, f.RelPath, wantRel[i])
		}
	}

	if files[0].Category != "loops" || files[0].Stem != "unroll" || files[0].Ext != ".c" {
		t.Errorf("unexpected file metadata: %+v", files[0])
	}
	if files[0].Directive != nil {
		t.Error("expected no directive for plain file")
	}
	if files[1].Directive == nil || files[1].Directive.ExtraFlags != "-fwrapv" {
		t.Errorf("expected -fwrapv directive, got %+v", files[1].Directive)
	}
	if files[2].Category != RootCategory {
		t.Errorf("root file category = %q, want %q", files[2].Category, RootCategory)
	}
	if files[2].Language() != "c++" || files[0].Language() != "c" {
		t.Error("language detection mismatch")
	}
}

func TestDiscover_MalformedHintsFallBack(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/bad.c", "/* @gallery-hints\n *   extra-flags:\n */\n")

	files, err := Discover(root, []string{".c"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("malformed hints must not fail discovery: %v", err)
	}
	if len(files) != 1 || files[0].Directive != nil {
		t.Fatalf("expected one file with no directive, got %+v", files)
	}
}

func TestDiscover_StemCollision(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "loops/dup.c", "int a;\n")
	writeFile(t, root, "loops/dup.cpp", "int b;\n")

	_, err := Discover(root, nil, zerolog.Nop())
	if err == nil {
		t.Fatal("expected collision error, got nil")
	}
	if !strings.Contains(err.Error(), "same artifact path") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDiscover_MissingRoot(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "nope"), nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing root")
	}
}
