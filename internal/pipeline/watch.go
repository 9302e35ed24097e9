package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/backmassage/svgbatch/internal/config"
	"github.com/backmassage/svgbatch/internal/logging"
	"github.com/backmassage/svgbatch/internal/optimizer"
	"github.com/backmassage/svgbatch/internal/svgo"
	"github.com/backmassage/svgbatch/internal/watcher"
)

// Watch runs one full batch and then re-optimizes SVG files in cfg.Dir
// whenever they are created or modified, until ctx is cancelled.
//
// The initial batch honors the error policy; failures after that are
// logged and recorded but never stop watching. Writes made by Watch itself
// are recognized by content digest and not processed again.
func Watch(ctx context.Context, cfg *config.Config, opt optimizer.Optimizer, plugins svgo.Config, log *logging.Logger) (RunStats, error) {
	b, err := newBatch(cfg, opt, plugins, log)
	if err != nil {
		return RunStats{}, err
	}

	// Watch before the first pass so edits made during it are not lost.
	w, err := watcher.New(cfg.Dir, cfg.WatchDebounce, log)
	if err != nil {
		return RunStats{}, err
	}
	defer w.Close()
	go w.Run(ctx)

	total, err := b.run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return total, nil
		}
		log.Error("Initial pass stopped: %v", err)
	}

	log.Info("Watching %s for changes (Ctrl+C to stop)", cfg.Dir)
	for {
		select {
		case <-ctx.Done():
			log.Info("Stopped watching")
			return total, nil
		case events := <-w.Events():
			total.add(b.handleEvents(ctx, events))
		}
	}
}

// handleEvents processes one debounced batch of file events.
func (b *batch) handleEvents(ctx context.Context, events []watcher.Event) RunStats {
	var stats RunStats

	for _, ev := range events {
		if b.matcher.IsRulesFile(ev.Path) {
			b.matcher.Reload()
			b.log.Info("Reloaded ignore rules")
		}
	}

	var files []Entry
	for _, ev := range events {
		name := filepath.Base(ev.Path)
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			b.forget(ev.Path)
			continue
		}
		if !IsSVG(name) {
			continue
		}
		if b.matcher.ShouldIgnore(name) {
			b.log.Debug(b.cfg.Verbose, "Ignored: %s", name)
			stats.Ignored++
			continue
		}
		data, err := os.ReadFile(ev.Path)
		if err == nil && b.ownWrite(ev.Path, data) {
			b.log.Debug(b.cfg.Verbose, "Skipping own write: %s", name)
			continue
		}
		files = append(files, Entry{Name: name, Path: ev.Path})
	}

	stats.Selected = len(files)
	for i, e := range files {
		if ctx.Err() != nil {
			stats.Skipped += len(files) - i
			break
		}
		res := b.process(ctx, e)
		if stop, _ := b.report(ctx, i, len(files), res, &stats); stop && ctx.Err() != nil {
			break
		}
	}
	return stats
}
