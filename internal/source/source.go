// Package source discovers gallery example files under a source root.
package source

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/asmgallery/internal/directive"
)

// RootCategory is the category assigned to files placed directly in the source root.
const RootCategory = "general"

// DefaultExtensions lists the suffixes picked up when none are configured.
var DefaultExtensions = []string{".c", ".cc", ".cpp", ".cxx", ".C", ".h", ".hpp"}

// File is one example source with its parsed directive.
type File struct {
	Path      string               // Absolute path on disk
	RelPath   string               // Slash-separated path relative to the source root
	Category  string               // Containing group, e.g. "loops" or "security/heap"
	Stem      string               // Base name without extension
	Ext       string               // Extension including the dot
	Text      string               // Full source text
	Directive *directive.Directive // Nil when the file has no (usable) hint block
}

// Language returns the explain-service language for the file's extension.
func (f File) Language() string {
	switch f.Ext {
	case ".c", ".h":
		return "c"
	default:
		return "c++"
	}
}

// Discover walks root and loads every file whose extension is in exts.
// Files are returned sorted by RelPath. Hidden directories are skipped.
//
// Two files that would produce the same artifact path (same category and
// stem, e.g. foo.c and foo.cpp) are rejected, since the output tree doubles
// as the result cache and must map each file to a distinct location.
func Discover(root string, exts []string, logger zerolog.Logger) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving source root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", absRoot)
	}

	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	wanted := make(map[string]bool, len(exts))
	for _, e := range exts {
		wanted[e] = true
	}

	var files []File
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != absRoot && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !wanted[filepath.Ext(p)] {
			return nil
		}

		f, err := load(absRoot, p)
		if err != nil {
			return err
		}

		var warnings []directive.Warning
		f.Directive, warnings = directive.Parse(f.Text)
		for _, w := range warnings {
			logger.Warn().Str("file", f.RelPath).Str("hint", w.String()).Msg("Ignoring malformed gallery hints")
		}
		if f.Directive.Conflicting() {
			logger.Warn().Str("file", f.RelPath).Msg("compiler-only and compiler-exclude both set; compiler-exclude ignored")
		}

		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", absRoot, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	seen := make(map[string]string, len(files))
	for _, f := range files {
		slot := path.Join(f.Category, f.Stem)
		if other, dup := seen[slot]; dup {
			return nil, fmt.Errorf("%s and %s map to the same artifact path %q", other, f.RelPath, slot)
		}
		seen[slot] = f.RelPath
	}

	return files, nil
}

func load(root, p string) (File, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", p, err)
	}

	rel, err := filepath.Rel(root, p)
	if err != nil {
		return File{}, fmt.Errorf("relativizing %s: %w", p, err)
	}
	rel = filepath.ToSlash(rel)

	category := path.Dir(rel)
	if category == "." {
		category = RootCategory
	}
	ext := path.Ext(rel)

	return File{
		Path:     p,
		RelPath:  rel,
		Category: category,
		Stem:     strings.TrimSuffix(path.Base(rel), ext),
		Ext:      ext,
		Text:     string(data),
	}, nil
}
