// Package ignore decides which selected SVG files are left alone. Rules come
// from --exclude doublestar patterns and an optional gitignore-style file in
// the target directory.
package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"
)

// Options configures a Matcher.
type Options struct {
	Dir        string   // Target directory; the ignore file is resolved against it.
	Patterns   []string // Doublestar patterns matched against entry names.
	IgnoreFile string   // File name inside Dir. Empty disables the file.
}

// Matcher is safe for concurrent use: Reload takes the write lock,
// ShouldIgnore the read lock.
type Matcher struct {
	mu         sync.RWMutex
	dir        string
	patterns   []string
	ignoreFile string
	rules      gitignore.GitIgnore
}

// NewMatcher validates every pattern and loads the ignore file if present.
// A missing ignore file is not an error.
func NewMatcher(opts Options) (*Matcher, error) {
	for _, p := range opts.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	m := &Matcher{
		dir:        opts.Dir,
		patterns:   opts.Patterns,
		ignoreFile: opts.IgnoreFile,
	}
	m.rules = m.load()
	return m, nil
}

// ShouldIgnore reports whether the entry called name should be skipped.
func (m *Matcher) ShouldIgnore(name string) bool {
	name = filepath.ToSlash(name)
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rules == nil {
		return false
	}
	match := m.rules.Relative(name, false)
	return match != nil && match.Ignore()
}

// IsRulesFile reports whether name is the configured ignore file.
func (m *Matcher) IsRulesFile(name string) bool {
	return m.ignoreFile != "" && filepath.Base(name) == m.ignoreFile
}

// Empty reports whether the matcher can never exclude anything.
func (m *Matcher) Empty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patterns) == 0 && m.rules == nil
}

// Reload re-reads the ignore file. Watch mode calls it when the file changes.
func (m *Matcher) Reload() {
	rules := m.load()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = rules
}

func (m *Matcher) load() gitignore.GitIgnore {
	if m.ignoreFile == "" {
		return nil
	}
	f, err := os.Open(filepath.Join(m.dir, m.ignoreFile))
	if err != nil {
		return nil
	}
	defer f.Close()
	return gitignore.New(f, m.dir, nil)
}
