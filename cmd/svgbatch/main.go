// Command svgbatch rewrites every *.svg file in a directory with the svgo
// optimizer (or the in-process minifier) under a fixed plugin configuration.
//
// Running it without a subcommand performs a single batch; watch, analyze
// and check are available as subcommands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/backmassage/svgbatch/internal/config"
	"github.com/backmassage/svgbatch/internal/logging"
	"github.com/backmassage/svgbatch/internal/svgo"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

// errReported signals a failure that has already been logged; run only
// turns it into exit status 1.
var errReported = errors.New("failure already reported")

// app holds the configuration shared by every command. Flags write into
// cfg directly; flags.Apply folds in the rest after parsing.
type app struct {
	cfg   config.Config
	flags *config.Flags
}

// session is what a command has after bootstrap succeeds.
type session struct {
	cfg     *config.Config
	log     *logging.Logger
	plugins svgo.Config
}

func main() {
	os.Exit(run())
}

func run() int {
	a := &app{cfg: config.DefaultConfig()}
	root := newRootCmd(a)

	if err := root.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "svgbatch: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "svgbatch [dir]",
		Short: "Optimize every SVG file in a directory in place",
		Long: `svgbatch lists a directory, selects entries whose name ends in ".svg"
and overwrites each with the output of svgo using the plugins
convertPathData, removeUselessDefs and mergePaths.

The directory defaults to ../temp. Other files are never touched.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runBatch,
	}
	a.flags = config.BindFlags(root.PersistentFlags(), &a.cfg)

	root.AddCommand(
		newRunCmd(a),
		newWatchCmd(a),
		newAnalyzeCmd(a),
		newCheckCmd(a),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "svgbatch %s (commit: %s)\n", version, commit)
		},
	}
}

// bootstrap applies positional arguments, validates the configuration,
// opens the logger and loads the plugin list. Errors before the logger
// exists are returned for run to print on stderr.
func (a *app) bootstrap(args []string) (*session, error) {
	if err := a.flags.Apply(&a.cfg, args); err != nil {
		return nil, err
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logging.NewLogger(&a.cfg)
	if err != nil {
		return nil, err
	}

	plugins := svgo.DefaultConfig()
	if a.cfg.PluginsFile != "" {
		plugins, err = svgo.LoadFile(a.cfg.PluginsFile)
		if err != nil {
			log.Error("Plugin file %s: %v", a.cfg.PluginsFile, err)
			log.Close()
			return nil, errReported
		}
		log.Info("Plugins from %s", a.cfg.PluginsFile)
	}

	return &session{cfg: &a.cfg, log: log, plugins: plugins}, nil
}

// interruptContext cancels on SIGINT/SIGTERM so the pipeline can stop
// between files.
func interruptContext(parent context.Context, log *logging.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Received interrupt, stopping…")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
