package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/backmassage/svgbatch/internal/config"
	"github.com/backmassage/svgbatch/internal/display"
	"github.com/backmassage/svgbatch/internal/ignore"
	"github.com/backmassage/svgbatch/internal/logging"
	"github.com/backmassage/svgbatch/internal/optimizer"
	"github.com/backmassage/svgbatch/internal/svgo"
)

// batch carries everything shared by the files of one run. The plugin list
// is fixed for its lifetime.
type batch struct {
	cfg     *config.Config
	opt     optimizer.Optimizer
	plugins svgo.Config
	matcher *ignore.Matcher
	log     *logging.Logger

	mu      sync.Mutex
	written map[string][sha256.Size]byte // path → digest of our last write
}

func newBatch(cfg *config.Config, opt optimizer.Optimizer, plugins svgo.Config, log *logging.Logger) (*batch, error) {
	m, err := NewMatcher(cfg)
	if err != nil {
		return nil, err
	}
	return &batch{
		cfg:     cfg,
		opt:     opt,
		plugins: plugins,
		matcher: m,
		log:     log,
		written: make(map[string][sha256.Size]byte),
	}, nil
}

// NewMatcher builds the ignore matcher described by cfg.
func NewMatcher(cfg *config.Config) (*ignore.Matcher, error) {
	return ignore.NewMatcher(ignore.Options{
		Dir:        cfg.Dir,
		Patterns:   cfg.Excludes,
		IgnoreFile: cfg.IgnoreFile,
	})
}

// Run is the top-level batch entry point. It lists cfg.Dir, selects SVG
// files and rewrites each with opt under plugins.
//
// The returned error is non-nil when the directory cannot be listed, when
// the run is interrupted, or under the abort policy when a file fails. With
// the continue policy per-file failures are only recorded in RunStats.
func Run(ctx context.Context, cfg *config.Config, opt optimizer.Optimizer, plugins svgo.Config, log *logging.Logger) (RunStats, error) {
	b, err := newBatch(cfg, opt, plugins, log)
	if err != nil {
		return RunStats{}, err
	}
	return b.run(ctx)
}

func (b *batch) run(ctx context.Context) (RunStats, error) {
	var stats RunStats

	sel, err := Plan(b.cfg.Dir, b.matcher)
	if err != nil {
		return stats, err
	}
	stats.Listed = len(sel.Entries)
	stats.Selected = len(sel.Files)
	stats.Ignored = len(sel.Ignored)

	b.logHeader(&stats)
	for _, e := range sel.Ignored {
		b.log.Debug(b.cfg.Verbose, "Ignored: %s", e.Name)
	}

	if b.cfg.Sequential() {
		err = b.runSequential(ctx, sel.Files, &stats)
	} else {
		err = b.runParallel(ctx, sel.Files, &stats)
	}

	b.logSummary(&stats)
	return stats, err
}

// runSequential processes files one at a time in listing order.
func (b *batch) runSequential(ctx context.Context, files []Entry, stats *RunStats) error {
	for i, e := range files {
		if ctx.Err() != nil {
			stats.Skipped += len(files) - i
			b.log.Warn("Interrupted")
			return ctx.Err()
		}

		res := b.process(ctx, e)
		if stop, err := b.report(ctx, i, len(files), res, stats); stop {
			stats.Skipped += len(files) - i - 1
			return err
		}
	}
	return nil
}

// runParallel fans files out to cfg.Jobs workers and reports results in
// listing order. Under the abort policy no file starts after a failure;
// files already running are allowed to finish.
func (b *batch) runParallel(ctx context.Context, files []Entry, stats *RunStats) error {
	results := make([]FileResult, len(files))
	done := make([]chan struct{}, len(files))
	for i := range done {
		done[i] = make(chan struct{})
	}

	var halt atomic.Bool
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < b.cfg.Jobs; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if halt.Load() || ctx.Err() != nil {
					results[i] = FileResult{Name: files[i].Name, Path: files[i].Path, skipped: true}
				} else {
					results[i] = b.process(ctx, files[i])
					if results[i].Failed() && b.cfg.ErrorPolicy == config.PolicyAbort {
						halt.Store(true)
					}
				}
				close(done[i])
			}
		}()
	}
	go func() {
		for i := range files {
			jobs <- i
		}
		close(jobs)
	}()

	// Files that finished after the first failure are still reported:
	// their output is already on disk.
	var firstErr error
	for i := range files {
		<-done[i]
		res := results[i]
		if res.skipped {
			stats.Skipped++
			continue
		}
		if stop, err := b.report(ctx, i, len(files), res, stats); stop && firstErr == nil {
			firstErr = err
		}
	}
	wg.Wait()
	if firstErr == nil && ctx.Err() != nil && stats.Skipped > 0 {
		b.log.Warn("Interrupted")
		firstErr = ctx.Err()
	}
	return firstErr
}

// process runs the per-file transform and remembers what was written.
func (b *batch) process(ctx context.Context, e Entry) FileResult {
	res := processFile(ctx, e.Path, b.opt, b.plugins, !b.cfg.DryRun)
	if res.written {
		b.mu.Lock()
		b.written[e.Path] = res.sum
		b.mu.Unlock()
	}
	return res
}

// report logs one finished file and folds it into stats. stop is true when
// the batch must end here; err is then the error Run returns.
func (b *batch) report(ctx context.Context, i, n int, res FileResult, stats *RunStats) (stop bool, err error) {
	// A failure caused by cancellation is an interrupt, not a file error.
	if res.Failed() && ctx.Err() != nil {
		stats.Skipped++
		b.log.Warn("Interrupted during %s", res.Name)
		return true, ctx.Err()
	}

	b.log.Info("[%d/%d] %s", i+1, n, res.Name)
	stats.record(res)

	if res.Failed() {
		b.log.Error("  %s failed: %v", res.Stage, res.Err)
		if b.cfg.ErrorPolicy == config.PolicyAbort {
			return true, fmt.Errorf("%s: %w", res.Name, res.Err)
		}
		return false, nil
	}

	in, out := display.FormatBytes(res.InputBytes), display.FormatBytes(res.OutputBytes)
	ratio := display.FormatRatio(res.InputBytes, res.OutputBytes)
	switch {
	case b.cfg.DryRun:
		b.log.Success("  [DRY] Would write %s -> %s (%s of original)", in, out, ratio)
	case !res.Changed:
		b.log.Success("  Already optimal (%s)", in)
	default:
		b.log.Success("  %s -> %s (%s of original)", in, out, ratio)
	}
	return false, nil
}

// ownWrite reports whether path still holds exactly what this batch last
// wrote to it.
func (b *batch) ownWrite(path string, data []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	sum, ok := b.written[path]
	return ok && sum == sha256.Sum256(data)
}

func (b *batch) forget(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.written, path)
}

// --- Logging helpers ---

func (b *batch) logHeader(stats *RunStats) {
	b.log.Info("Found %d SVG files in %s (%d entries)", stats.Selected, b.cfg.Dir, stats.Listed)
	if stats.Ignored > 0 {
		b.log.Info("Ignored by rules: %d", stats.Ignored)
	} else if b.matcher.Empty() {
		b.log.Debug(b.cfg.Verbose, "No ignore rules")
	}
	b.log.Debug(b.cfg.Verbose, "Plugins: %v", b.plugins.Names())
	if b.cfg.ErrorPolicy == config.PolicyContinue {
		b.log.Info("Error policy: continue past failed files")
	}
	if !b.cfg.Sequential() {
		b.log.Info("Workers: %d", b.cfg.Jobs)
	}
}

func (b *batch) logSummary(stats *RunStats) {
	b.log.Info("==============================")
	b.log.Info("Done: %d optimized, %d failed, %d ignored", stats.Optimized, stats.Failed, stats.Ignored)
	if stats.Unchanged > 0 {
		b.log.Info("  Already optimal: %d", stats.Unchanged)
	}
	if stats.Skipped > 0 {
		b.log.Warn("  Not processed: %d", stats.Skipped)
	}

	switch saved := stats.SpaceSaved(); {
	case b.cfg.DryRun:
		b.log.Info("  Space that would be saved: %s (dry run, nothing written)", display.FormatBytesWithSign(saved))
	case saved >= 0:
		b.log.Success("  Total space saved: %s (input %s -> output %s)",
			display.FormatBytes(saved),
			display.FormatBytes(stats.TotalInputBytes),
			display.FormatBytes(stats.TotalOutputBytes))
	default:
		b.log.Warn("  Total space saved: -%s (overall output is larger)", display.FormatBytes(-saved))
	}

	if len(stats.Failures) > 0 {
		b.log.Error("Failed files:")
		for _, f := range stats.Failures {
			b.log.Error("  %s (%s): %v", f.Name, f.Stage, f.Err)
		}
	}
}
