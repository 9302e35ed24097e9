package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/backmassage/svgbatch/internal/ignore"
)

// ErrDirectoryAccess is returned when the target directory cannot be listed.
// It is always fatal for the run.
var ErrDirectoryAccess = errors.New("cannot access directory")

// svgSuffix is matched case-sensitively: "icon.SVG" is not selected.
const svgSuffix = ".svg"

// Entry is one child of the target directory.
type Entry struct {
	Name  string
	IsDir bool
	Path  string
}

// Selection is the outcome of listing and filtering the target directory.
type Selection struct {
	Entries []Entry // Everything the directory contains, in listing order.
	Files   []Entry // Entries to optimize, in listing order.
	Ignored []Entry // SVG entries excluded by ignore rules.
}

// ListEntries returns the direct children of dir sorted by name. Nothing is
// filtered here, including subdirectories.
func ListEntries(dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryAccess, err)
	}
	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		entries = append(entries, Entry{
			Name:  de.Name(),
			IsDir: de.IsDir(),
			Path:  filepath.Join(dir, de.Name()),
		})
	}
	return entries, nil
}

// IsSVG reports whether name ends with ".svg". Only the name is inspected,
// so a directory called "x.svg" is selected too.
func IsSVG(name string) bool {
	return strings.HasSuffix(name, svgSuffix)
}

// Filter keeps SVG entries and moves those matched by m to Ignored. A nil
// matcher excludes nothing.
func Filter(entries []Entry, m *ignore.Matcher) Selection {
	sel := Selection{Entries: entries}
	for _, e := range entries {
		if !IsSVG(e.Name) {
			continue
		}
		if m != nil && m.ShouldIgnore(e.Name) {
			sel.Ignored = append(sel.Ignored, e)
			continue
		}
		sel.Files = append(sel.Files, e)
	}
	return sel
}

// Plan lists and filters dir without touching any file.
func Plan(dir string, m *ignore.Matcher) (Selection, error) {
	entries, err := ListEntries(dir)
	if err != nil {
		return Selection{}, err
	}
	return Filter(entries, m), nil
}
