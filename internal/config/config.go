// Package config holds runtime configuration: defaults, CLI flag binding, and
// validation. Defaults target the sibling "temp" directory with svgo, the
// fixed plugin list, fail-fast and sequential processing.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// --- Enum types for validated string fields ---

// Backend selects the optimizer implementation.
type Backend string

const (
	BackendSvgo   Backend = "svgo"   // External svgo CLI (default, exact plugin semantics).
	BackendMinify Backend = "minify" // In-process tdewolff/minify SVG minifier.
)

// ErrorPolicy controls what happens after a per-file failure.
type ErrorPolicy string

const (
	PolicyAbort    ErrorPolicy = "abort"    // Stop the batch at the first failure (default).
	PolicyContinue ErrorPolicy = "continue" // Record the failure and keep going.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// DefaultDir is "temp" one level above the working directory.
const DefaultDir = "../temp"

// DefaultIgnoreFile is the gitignore-style file looked up inside Dir.
const DefaultIgnoreFile = ".svgbatchignore"

// Config holds all runtime settings. It is populated by [DefaultConfig],
// mutated by the flags bound in [BindFlags], and passed by pointer to the
// packages that need it.
type Config struct {
	// Target directory (flag --dir or the single positional argument).
	Dir string

	// Optimizer.
	Backend     Backend
	SvgoBin     string        // Default: "svgo". Resolved on PATH.
	PluginsFile string        // Optional JSON plugin list replacing the default three.
	FileTimeout time.Duration // Default: 60s. Per-file optimizer deadline; 0 disables.

	// Selection.
	Excludes   []string // Extra doublestar patterns matched against entry names.
	IgnoreFile string   // Default: ".svgbatchignore". Empty disables.

	// Behavior.
	ErrorPolicy ErrorPolicy // Default: "abort".
	Jobs        int         // Default: 1 (sequential).
	DryRun      bool
	Confirm     bool // Ask before overwriting (interactive terminals only).

	// Watch mode.
	WatchDebounce time.Duration // Default: 200ms.

	// Display and logging.
	Verbose   bool
	ColorMode ColorMode // Default: "auto".
	LogFile   string    // Optional log file path.
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return Config{
		Dir:           DefaultDir,
		Backend:       BackendSvgo,
		SvgoBin:       "svgo",
		FileTimeout:   60 * time.Second,
		IgnoreFile:    DefaultIgnoreFile,
		ErrorPolicy:   PolicyAbort,
		Jobs:          1,
		WatchDebounce: 200 * time.Millisecond,
		ColorMode:     ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and numeric ranges.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSvgo, BackendMinify:
		// valid
	default:
		return errors.New("invalid backend (use 'svgo' or 'minify')")
	}

	switch c.ErrorPolicy {
	case PolicyAbort, PolicyContinue:
		// valid
	default:
		return errors.New("invalid error policy (use 'abort' or 'continue')")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1 (got %d)", c.Jobs)
	}
	if c.FileTimeout < 0 {
		return errors.New("file timeout must not be negative")
	}
	if c.Backend == BackendSvgo && strings.TrimSpace(c.SvgoBin) == "" {
		return errors.New("svgo binary must not be empty")
	}
	if c.Dir == "" {
		return errors.New("need a target directory")
	}
	return nil
}

// Sequential reports whether files are processed one at a time.
func (c *Config) Sequential() bool {
	return c.Jobs <= 1
}
