// Package check provides system diagnostics (the check command) and
// pre-run dependency validation (CheckDeps) for the optimizer backend and
// the plugin configuration.
package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/backmassage/svgbatch/internal/config"
	"github.com/backmassage/svgbatch/internal/optimizer"
	"github.com/backmassage/svgbatch/internal/svgo"
)

// Sentinel errors reported by CheckDeps and RunCheck.
var (
	ErrSvgoNotFound   = errors.New("svgo not found on PATH (install with: npm install -g svgo)")
	ErrTestOptimize   = errors.New("test optimization failed")
	ErrDirNotFound    = errors.New("target directory not found")
	ErrNotADirectory  = errors.New("target path is not a directory")
	ErrPluginsInvalid = errors.New("plugin configuration invalid")
)

// sample exercises every default plugin: path data, an empty defs block
// and two mergeable paths.
const sample = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10">` +
	`<defs></defs>` +
	`<path d="M 0 0 L 5 5"/><path d="M 5 5 L 10 10"/>` +
	`</svg>`

const checkTimeout = 30 * time.Second

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// stays testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// RunCheck prints the availability of the configured backend, node, the
// target directory and the plugin list. It reports false when anything
// needed for a run is missing.
func RunCheck(ctx context.Context, cfg *config.Config, log Logger) bool {
	log.Info("=== System Check ===")

	ok := true
	switch cfg.Backend {
	case config.BackendSvgo:
		checkNode(log)
		ok = checkSvgo(cfg, log) && ok
	case config.BackendMinify:
		log.Success("Backend: minify (in-process, always available)")
	}

	plugins, err := loadPlugins(cfg)
	if err != nil {
		log.Error("%v", err)
		return false
	}
	log.Info("Plugins: %s", strings.Join(plugins.Names(), ", "))

	ok = checkDir(cfg, log) && ok

	log.Info("Testing %s on a sample document...", cfg.Backend)
	in, out, err := testOptimize(ctx, cfg, plugins)
	if err != nil {
		log.Error("%v", err)
		return false
	}
	log.Success("Sample optimized: %d -> %d bytes", in, out)
	return ok
}

// checkNode reports the node version svgo runs on. Informational only.
func checkNode(log Logger) {
	if _, err := exec.LookPath("node"); err != nil {
		log.Warn("node not found on PATH (svgo needs Node.js)")
		return
	}
	if v, err := firstLine("node", "--version"); err == nil {
		log.Success("node: %s", v)
	}
}

func checkSvgo(cfg *config.Config, log Logger) bool {
	path, err := exec.LookPath(cfg.SvgoBin)
	if err != nil {
		log.Error("svgo not found: %s", cfg.SvgoBin)
		return false
	}
	v, err := firstLine(path, "--version")
	if err != nil {
		log.Warn("svgo found at %s but --version failed: %v", path, err)
		return true
	}
	log.Success("svgo: %s (%s)", v, path)
	return true
}

func checkDir(cfg *config.Config, log Logger) bool {
	if err := validateDir(cfg.Dir); err != nil {
		log.Error("%v", err)
		return false
	}
	log.Success("Target directory: %s", cfg.Dir)
	return true
}

// CheckDeps is the pre-run validation: the plugin list must load and the
// backend must optimize a sample document. The target directory is left to
// the pipeline. Returns a sentinel error on failure.
func CheckDeps(ctx context.Context, cfg *config.Config) error {
	if cfg.Backend == config.BackendSvgo {
		if _, err := exec.LookPath(cfg.SvgoBin); err != nil {
			return ErrSvgoNotFound
		}
	}
	plugins, err := loadPlugins(cfg)
	if err != nil {
		return err
	}
	if _, _, err := testOptimize(ctx, cfg, plugins); err != nil {
		return err
	}
	return nil
}

// --- internal helpers ---

func validateDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDirNotFound, dir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, dir)
	}
	return nil
}

func loadPlugins(cfg *config.Config) (svgo.Config, error) {
	if cfg.PluginsFile == "" {
		return svgo.DefaultConfig(), nil
	}
	plugins, err := svgo.LoadFile(cfg.PluginsFile)
	if err != nil {
		return svgo.Config{}, fmt.Errorf("%w: %w", ErrPluginsInvalid, err)
	}
	return plugins, nil
}

// testOptimize runs the configured backend on sample and returns the input
// and output sizes.
func testOptimize(ctx context.Context, cfg *config.Config, plugins svgo.Config) (int, int, error) {
	backend, err := optimizer.New(cfg)
	if err != nil {
		return 0, 0, err
	}
	defer backend.Close()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	out, err := backend.Optimize(ctx, sample, plugins)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrTestOptimize, err)
	}
	return len(sample), len(out), nil
}

// firstLine runs a command and returns the first line of its stdout.
func firstLine(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(out))
	if idx := strings.Index(line, "\n"); idx > 0 {
		line = line[:idx]
	}
	return line, nil
}
