package optimizer

import (
	"context"
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/backmassage/svgbatch/internal/svgo"
)

const svgMediaType = "image/svg+xml"

// Minify optimizes in-process with the tdewolff/minify SVG minifier. It has
// no plugin system: the largest floatPrecision parameter becomes the
// minifier's precision and every other plugin setting is ignored.
type Minify struct{}

// NewMinify returns the in-process backend.
func NewMinify() *Minify { return &Minify{} }

// Name implements Backend.
func (m *Minify) Name() string { return "minify" }

// Optimize implements Optimizer.
func (m *Minify) Optimize(ctx context.Context, text string, plugins svgo.Config) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	precision, _ := plugins.FloatPrecision()
	mm := minify.New()
	mm.Add(svgMediaType, &svg.Minifier{Precision: precision})

	out, err := mm.String(svgMediaType, text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	return out, nil
}

// Close implements Backend.
func (m *Minify) Close() error { return nil }
