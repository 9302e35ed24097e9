package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/backmassage/svgbatch/internal/check"
	"github.com/backmassage/svgbatch/internal/config"
	"github.com/backmassage/svgbatch/internal/display"
	"github.com/backmassage/svgbatch/internal/optimizer"
	"github.com/backmassage/svgbatch/internal/pipeline"
	"github.com/backmassage/svgbatch/internal/term"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run [dir]",
		Short: "Optimize every SVG file in the directory once (default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runBatch,
	}
}

func (a *app) runBatch(cmd *cobra.Command, args []string) error {
	s, err := a.bootstrap(args)
	if err != nil {
		return err
	}
	defer s.log.Close()
	cfg, log := s.cfg, s.log

	display.PrintBanner(os.Stdout)
	logRunHeader(s)

	ctx, cancel := interruptContext(cmd.Context(), log)
	defer cancel()

	// Fail fast if the backend cannot optimize a sample document.
	if err := check.CheckDeps(ctx, cfg); err != nil {
		log.Error("%v", err)
		return errReported
	}

	if cfg.Confirm && !cfg.DryRun {
		ok, err := confirmOverwrite(s)
		if err != nil {
			log.Error("%v", err)
			return errReported
		}
		if !ok {
			log.Warn("Cancelled, no files changed")
			return nil
		}
	}

	backend, err := optimizer.New(cfg)
	if err != nil {
		log.Error("%v", err)
		return errReported
	}
	defer backend.Close()

	stats, err := pipeline.Run(ctx, cfg, backend, s.plugins, log)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Interrupted")
		} else {
			log.Error("%v", err)
		}
		return errReported
	}
	if stats.Failed > 0 {
		return errReported
	}
	return nil
}

func logRunHeader(s *session) {
	cfg, log := s.cfg, s.log
	log.Info("=== svgbatch v%s (%s) ===", version, commit)
	log.Info("Dir:     %s", cfg.Dir)
	if cfg.Backend == config.BackendSvgo {
		log.Info("Backend: svgo (%s)", cfg.SvgoBin)
	} else {
		log.Info("Backend: %s", cfg.Backend)
	}
	if cfg.DryRun {
		log.Warn("DRY RUN: no files will be written")
	}
	log.Info("")
}

// confirmOverwrite asks before any file is rewritten. Without an
// interactive terminal it proceeds as if confirmed.
func confirmOverwrite(s *session) (bool, error) {
	if !term.IsTerminal(os.Stdin) {
		s.log.Warn("--confirm ignored: stdin is not a terminal")
		return true, nil
	}

	m, err := pipeline.NewMatcher(s.cfg)
	if err != nil {
		return false, err
	}
	sel, err := pipeline.Plan(s.cfg.Dir, m)
	if err != nil {
		return false, err
	}
	if len(sel.Files) == 0 {
		return true, nil
	}

	var ok bool
	p := &survey.Confirm{
		Message: fmt.Sprintf("Overwrite %d SVG files in %s?", len(sel.Files), s.cfg.Dir),
		Default: false,
	}
	if err := survey.AskOne(p, &ok); err != nil {
		return false, err
	}
	return ok, nil
}
