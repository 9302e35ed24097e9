// Package optimizer is the boundary to the SVG optimization capability.
// The batch pipeline only sees [Optimizer]; concrete backends either run the
// svgo CLI as a subprocess or minify in-process with tdewolff/minify.
package optimizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/backmassage/svgbatch/internal/config"
	"github.com/backmassage/svgbatch/internal/svgo"
)

// Failure categories. Backends wrap them so callers can use errors.Is.
var (
	ErrParse   = errors.New("svg could not be parsed")
	ErrPlugin  = errors.New("plugin configuration rejected")
	ErrBackend = errors.New("optimizer backend failed")
)

// Optimizer turns SVG text into optimized SVG text under a plugin configuration.
type Optimizer interface {
	Optimize(ctx context.Context, svg string, plugins svgo.Config) (string, error)
}

// Backend is an Optimizer that owns resources for the duration of a run.
type Backend interface {
	Optimizer
	Name() string
	Close() error
}

// New builds the backend selected by cfg.Backend.
func New(cfg *config.Config) (Backend, error) {
	switch cfg.Backend {
	case config.BackendSvgo:
		return NewSvgo(cfg.SvgoBin, cfg.FileTimeout), nil
	case config.BackendMinify:
		return NewMinify(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
