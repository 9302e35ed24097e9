package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/backmassage/svgbatch/internal/optimizer"
	"github.com/backmassage/svgbatch/internal/svgo"
)

// Per-file failure categories, one per stage.
var (
	ErrRead     = errors.New("cannot read file")
	ErrOptimize = errors.New("optimization failed")
	ErrWrite    = errors.New("cannot write file")
)

// FileResult is the outcome of processing one file.
type FileResult struct {
	Name        string
	Path        string
	InputBytes  int64
	OutputBytes int64
	Changed     bool  // Optimizer output differs from the input.
	Stage       Stage // Failing stage; empty on success.
	Err         error

	written bool
	sum     [sha256.Size]byte // Digest of the written content.
	skipped bool              // Never started (abort or interrupt).
}

// Failed reports whether processing stopped with an error.
func (r FileResult) Failed() bool { return r.Err != nil }

// ProcessFile reads path, optimizes it with plugins and overwrites it with
// the result. The file keeps its permission bits.
func ProcessFile(ctx context.Context, path string, opt optimizer.Optimizer, plugins svgo.Config) FileResult {
	return processFile(ctx, path, opt, plugins, true)
}

func processFile(ctx context.Context, path string, opt optimizer.Optimizer, plugins svgo.Config, write bool) FileResult {
	res := FileResult{Name: filepath.Base(path), Path: path}
	fail := func(stage Stage, err error) FileResult {
		res.Stage = stage
		res.Err = err
		return res
	}

	info, err := os.Stat(path)
	if err != nil {
		return fail(StageRead, fmt.Errorf("%w: %w", ErrRead, err))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(StageRead, fmt.Errorf("%w: %w", ErrRead, err))
	}
	if !utf8.Valid(data) {
		return fail(StageRead, fmt.Errorf("%w: not valid UTF-8", ErrRead))
	}
	res.InputBytes = int64(len(data))

	out, err := opt.Optimize(ctx, string(data), plugins)
	if err != nil {
		return fail(StageOptimize, fmt.Errorf("%w: %w", ErrOptimize, err))
	}
	res.OutputBytes = int64(len(out))
	res.Changed = out != string(data)

	if !write {
		return res
	}
	// WriteFile truncates; perm only applies when creating.
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return fail(StageWrite, fmt.Errorf("%w: %w", ErrWrite, err))
	}
	res.written = true
	res.sum = sha256.Sum256([]byte(out))
	return res
}
