package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/backmassage/svgbatch/internal/check"
	"github.com/backmassage/svgbatch/internal/config"
	"github.com/backmassage/svgbatch/internal/optimizer"
	"github.com/backmassage/svgbatch/internal/pipeline"
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Optimize once, then re-optimize SVG files as they change",
		Long: `watch runs a normal batch and keeps the directory under observation.
Created or modified *.svg files are optimized after a quiet period.
Failures are logged and never stop the watcher. Press Ctrl-C to exit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runWatch,
	}
	config.BindWatchFlags(cmd.Flags(), &a.cfg)
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	s, err := a.bootstrap(args)
	if err != nil {
		return err
	}
	defer s.log.Close()
	cfg, log := s.cfg, s.log

	logRunHeader(s)

	ctx, cancel := interruptContext(cmd.Context(), log)
	defer cancel()

	if err := check.CheckDeps(ctx, cfg); err != nil {
		log.Error("%v", err)
		return errReported
	}

	backend, err := optimizer.New(cfg)
	if err != nil {
		log.Error("%v", err)
		return errReported
	}
	defer backend.Close()

	stats, err := pipeline.Watch(ctx, cfg, backend, s.plugins, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("%v", err)
		return errReported
	}
	log.Info("Stopped watching after %d optimized, %d failed", stats.Optimized, stats.Failed)
	return nil
}
