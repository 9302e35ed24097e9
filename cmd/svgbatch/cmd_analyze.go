package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/backmassage/svgbatch/internal/check"
	"github.com/backmassage/svgbatch/internal/optimizer"
	"github.com/backmassage/svgbatch/internal/pipeline"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [dir]",
		Short: "Report per-file savings without writing anything",
		Long: `analyze optimizes every selected SVG in memory and prints a table of
input size, output size and compression ratio. Files whose ratio falls
outside the interquartile fences are flagged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runAnalyze,
	}
}

func (a *app) runAnalyze(cmd *cobra.Command, args []string) error {
	s, err := a.bootstrap(args)
	if err != nil {
		return err
	}
	defer s.log.Close()
	cfg, log := s.cfg, s.log

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

	if _, err := pipeline.Analyze(ctx, cfg, backend, s.plugins, log, os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Interrupted")
		} else {
			log.Error("%v", err)
		}
		return errReported
	}
	return nil
}
