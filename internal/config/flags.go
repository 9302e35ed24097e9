package config

// This file binds CLI flags onto a pflag.FlagSet owned by a cobra command.
// Flags are grouped into target, optimizer, behavior, and display.
// Negated flags (e.g. --no-color) are applied after Parse so Config defaults hold unless set.

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Flags holds flag values that are folded into Config after parsing.
type Flags struct {
	forceColor bool
	noColor    bool
}

// BindFlags registers every runtime flag on fs, writing into cfg.
// Call [Flags.Apply] after the flag set has been parsed.
func BindFlags(fs *pflag.FlagSet, cfg *Config) *Flags {
	var f Flags

	defineTargetFlags(fs, cfg)
	defineOptimizerFlags(fs, cfg)
	defineBehaviorFlags(fs, cfg)
	defineDisplayFlags(fs, cfg, &f)

	return &f
}

// defineTargetFlags registers --dir, --exclude, --ignore-file.
func defineTargetFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.Dir, "dir", "C", cfg.Dir, "Directory whose *.svg files are rewritten")
	fs.StringArrayVarP(&cfg.Excludes, "exclude", "x", nil, "Skip SVG files whose name matches this glob (repeatable)")
	fs.StringVar(&cfg.IgnoreFile, "ignore-file", cfg.IgnoreFile, "Gitignore-style file inside the directory (empty disables)")
}

// defineOptimizerFlags registers --backend, --svgo-bin, --plugins, --timeout.
func defineOptimizerFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.VarP(&backendValue{&cfg.Backend}, "backend", "b", "Optimizer backend: svgo | minify")
	fs.StringVar(&cfg.SvgoBin, "svgo-bin", cfg.SvgoBin, "svgo executable (name on PATH or path)")
	fs.StringVarP(&cfg.PluginsFile, "plugins", "p", "", "JSON plugin list replacing the default configuration")
	fs.DurationVar(&cfg.FileTimeout, "timeout", cfg.FileTimeout, "Per-file optimizer timeout (0 disables)")
}

// defineBehaviorFlags registers --on-error, --jobs, --dry-run, --confirm.
func defineBehaviorFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.Var(&errorPolicyValue{&cfg.ErrorPolicy}, "on-error", "Per-file failure policy: abort | continue")
	fs.IntVarP(&cfg.Jobs, "jobs", "j", cfg.Jobs, "Files optimized concurrently (1 = sequential)")
	fs.BoolVarP(&cfg.DryRun, "dry-run", "d", false, "Optimize but do not write files")
	fs.BoolVar(&cfg.Confirm, "confirm", false, "Ask before overwriting files")
}

// defineDisplayFlags registers --color, --no-color, --verbose, --log.
func defineDisplayFlags(fs *pflag.FlagSet, cfg *Config, f *Flags) {
	fs.BoolVar(&f.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose output")
	fs.StringVarP(&cfg.LogFile, "log", "l", "", "Append logs to file")
}

// BindWatchFlags registers flags that only the watch command understands.
func BindWatchFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.DurationVar(&cfg.WatchDebounce, "debounce", cfg.WatchDebounce, "Quiet period before changed files are optimized")
}

// Apply copies negated flag values into cfg and takes the target directory
// from the single optional positional argument.
func (f *Flags) Apply(cfg *Config, args []string) error {
	if f.noColor {
		cfg.ColorMode = ColorNever
	} else if f.forceColor {
		cfg.ColorMode = ColorAlways
	}

	switch len(args) {
	case 0:
	case 1:
		cfg.Dir = args[0]
	default:
		return fmt.Errorf("expected at most one directory argument, got %d", len(args))
	}
	cfg.Dir = NormalizeDirArg(cfg.Dir)
	return nil
}

// pflag.Value adapters so we can use enum types (Backend, ErrorPolicy) with fs.Var.

type backendValue struct{ p *Backend }

func (b *backendValue) String() string { return string(*b.p) }
func (b *backendValue) Type() string   { return "backend" }
func (b *backendValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "svgo":
		*b.p = BackendSvgo
	case "minify":
		*b.p = BackendMinify
	default:
		return fmt.Errorf("invalid backend %q (use 'svgo' or 'minify')", s)
	}
	return nil
}

type errorPolicyValue struct{ p *ErrorPolicy }

func (e *errorPolicyValue) String() string { return string(*e.p) }
func (e *errorPolicyValue) Type() string   { return "policy" }
func (e *errorPolicyValue) Set(s string) error {
	switch strings.ToLower(s) {
	case "abort", "fail-fast":
		*e.p = PolicyAbort
	case "continue", "skip":
		*e.p = PolicyContinue
	default:
		return fmt.Errorf("invalid error policy %q (use 'abort' or 'continue')", s)
	}
	return nil
}
