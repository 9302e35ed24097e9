package optimizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/backmassage/svgbatch/internal/svgo"
)

// ExecResult holds the outcome of a single svgo invocation.
type ExecResult struct {
	Stdout string
	Stderr string
	Err    error
}

// Svgo runs the svgo CLI once per document. The plugin list is written to
// an ES module in a private temp directory the first time it is seen and
// reused for every later file with the same configuration.
type Svgo struct {
	bin     string
	timeout time.Duration

	mu      sync.Mutex
	tmpDir  string
	modules map[string]string // module source → path on disk
}

// NewSvgo returns a backend invoking bin. A zero timeout disables the
// per-document deadline.
func NewSvgo(bin string, timeout time.Duration) *Svgo {
	return &Svgo{
		bin:     bin,
		timeout: timeout,
		modules: make(map[string]string),
	}
}

// Name implements Backend.
func (s *Svgo) Name() string { return "svgo" }

// Optimize pipes svg through svgo and returns its stdout.
func (s *Svgo) Optimize(ctx context.Context, svg string, plugins svgo.Config) (string, error) {
	configPath, err := s.configFile(plugins)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res := s.Execute(ctx, svg, BuildArgs(configPath))
	if res.Err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrBackend, ctx.Err())
		}
		if errors.Is(res.Err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %v", ErrBackend, res.Err)
		}
		detail := lastLines(res.Stderr, 3)
		if detail == "" {
			detail = res.Err.Error()
		}
		return "", fmt.Errorf("%w: %s", classify(res.Stderr), detail)
	}

	// svgo prints the document with console.log, which appends a newline
	// the library result does not have.
	out := strings.TrimSuffix(res.Stdout, "\n")
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: svgo produced no output", ErrBackend)
	}
	return out, nil
}

// Execute runs svgo with args, feeding stdin and capturing both streams.
func (s *Svgo) Execute(ctx context.Context, stdin string, args []string) ExecResult {
	cmd := exec.CommandContext(ctx, s.bin, args...)
	cmd.Stdin = strings.NewReader(stdin)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	return ExecResult{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
		Err:    err,
	}
}

// configFile returns the path of the module holding plugins, writing it on
// first use.
func (s *Svgo) configFile(plugins svgo.Config) (string, error) {
	mod, err := plugins.Module()
	if err != nil {
		return "", fmt.Errorf("render svgo config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if path, ok := s.modules[string(mod)]; ok {
		return path, nil
	}
	if s.tmpDir == "" {
		dir, err := os.MkdirTemp("", "svgbatch-")
		if err != nil {
			return "", err
		}
		s.tmpDir = dir
	}
	// svgo picks the loader from the extension; .mjs is always an ES module.
	path := filepath.Join(s.tmpDir, fmt.Sprintf("svgo.config.%d.mjs", len(s.modules)))
	if err := os.WriteFile(path, mod, 0o600); err != nil {
		return "", err
	}
	s.modules[string(mod)] = path
	return path, nil
}

// Close removes the generated config modules.
func (s *Svgo) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tmpDir == "" {
		return nil
	}
	err := os.RemoveAll(s.tmpDir)
	s.tmpDir = ""
	s.modules = make(map[string]string)
	return err
}
