package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/backmassage/svgbatch/internal/config"
	"github.com/backmassage/svgbatch/internal/display"
	"github.com/backmassage/svgbatch/internal/logging"
	"github.com/backmassage/svgbatch/internal/optimizer"
	"github.com/backmassage/svgbatch/internal/svgo"
	"github.com/backmassage/svgbatch/internal/term"
)

// AnalysisRow is one file of an analysis report.
type AnalysisRow struct {
	Name        string
	InputBytes  int64
	OutputBytes int64
	Err         error
}

// Ratio returns the optimized size as a percentage of the input size.
func (r AnalysisRow) Ratio() float64 {
	if r.InputBytes <= 0 {
		return 100
	}
	return float64(r.OutputBytes) * 100 / float64(r.InputBytes)
}

// Analyze optimizes every selected file in memory, never writing, and
// prints a size table to out with statistical outlier highlighting on the
// compression ratio. Files that fail are listed with their error.
func Analyze(ctx context.Context, cfg *config.Config, opt optimizer.Optimizer, plugins svgo.Config, log *logging.Logger, out io.Writer) ([]AnalysisRow, error) {
	m, err := NewMatcher(cfg)
	if err != nil {
		return nil, err
	}
	sel, err := Plan(cfg.Dir, m)
	if err != nil {
		return nil, err
	}
	if len(sel.Files) == 0 {
		log.Warn("No SVG files found in %s", cfg.Dir)
		return nil, nil
	}

	total := len(sel.Files)
	log.Info("Analyzing %d files in %s …", total, cfg.Dir)

	f, ok := out.(*os.File)
	isTTY := ok && term.IsTerminal(f)
	var rows []AnalysisRow
	var failed int
	var ratios []float64

	for i, e := range sel.Files {
		if ctx.Err() != nil {
			if isTTY {
				clearProgress(out)
			}
			log.Warn("Interrupted")
			return rows, ctx.Err()
		}

		printProgress(out, isTTY, i+1, total, failed, e.Name)

		res := processFile(ctx, e.Path, opt, plugins, false)
		row := AnalysisRow{Name: e.Name, InputBytes: res.InputBytes, OutputBytes: res.OutputBytes, Err: res.Err}
		if res.Failed() {
			failed++
			if isTTY {
				clearProgress(out)
			}
			log.Warn("Skip (%s failed): %s", res.Stage, e.Name)
		} else {
			ratios = append(ratios, row.Ratio())
		}
		rows = append(rows, row)
	}

	if isTTY {
		clearProgress(out)
	}

	stats := computeStats(ratios)
	printAnalysisTable(out, rows, stats)
	printAnalysisSummary(log, rows, stats)
	return rows, nil
}

// iqrBounds holds the IQR-based thresholds for outlier classification.
type iqrBounds struct {
	q1, q3    float64
	outlierLo float64 // Q1 - 1.5*IQR
	outlierHi float64 // Q3 + 1.5*IQR
	extremeLo float64 // Q1 - 3.0*IQR
	extremeHi float64 // Q3 + 3.0*IQR
	valid     bool
}

func computeStats(vals []float64) iqrBounds {
	if len(vals) < 4 {
		return iqrBounds{}
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1

	return iqrBounds{
		q1:        q1,
		q3:        q3,
		outlierLo: q1 - 1.5*iqr,
		outlierHi: q3 + 1.5*iqr,
		extremeLo: q1 - 3.0*iqr,
		extremeHi: q3 + 3.0*iqr,
		valid:     iqr > 0,
	}
}

// classify returns "" (normal), "outlier", or "extreme" for a value.
func (b *iqrBounds) classify(v float64) string {
	if !b.valid || v <= 0 {
		return ""
	}
	if v < b.extremeLo || v > b.extremeHi {
		return "extreme"
	}
	if v < b.outlierLo || v > b.outlierHi {
		return "outlier"
	}
	return ""
}

func printAnalysisTable(out io.Writer, rows []AnalysisRow, stats iqrBounds) {
	nameW := len("File")
	inW := len("Size")
	outW := len("Optimized")
	ratioW := len("Ratio")

	for _, r := range rows {
		nameW = max(nameW, len(r.Name))
		inW = max(inW, len(display.FormatBytes(r.InputBytes)))
		outW = max(outW, len(optimizedCell(r)))
		ratioW = max(ratioW, len(ratioCell(r)))
	}
	nameW = min(nameW, 50)

	header := fmt.Sprintf("  %-*s  %-*s  %-*s  %-*s",
		nameW, "File",
		inW, "Size",
		outW, "Optimized",
		ratioW, "Ratio",
	)
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, "  "+strings.Repeat("─", len(header)-2))

	for _, r := range rows {
		name := r.Name
		if len(name) > nameW {
			name = name[:nameW-1] + "…"
		}

		class := ""
		if r.Err == nil {
			class = stats.classify(r.Ratio())
		}

		// Pad the plain text first, then wrap in color so escape bytes do
		// not count toward the column width.
		fmt.Fprintf(out, "  %-*s  %-*s  %-*s  %s  %s\n",
			nameW, name,
			inW, display.FormatBytes(r.InputBytes),
			outW, optimizedCell(r),
			colorPad(ratioCell(r), ratioW, class),
			formatFlag(class),
		)
	}
	fmt.Fprintln(out)
}

func printAnalysisSummary(log *logging.Logger, rows []AnalysisRow, stats iqrBounds) {
	var outliers, extremes, failed int
	var in, out int64
	for _, r := range rows {
		if r.Err != nil {
			failed++
			continue
		}
		in += r.InputBytes
		out += r.OutputBytes
		switch stats.classify(r.Ratio()) {
		case "extreme":
			extremes++
		case "outlier":
			outliers++
		}
	}

	log.Info("Analyzed %d files", len(rows))
	log.Info("  Potential saving: %s (%s -> %s)",
		display.FormatBytes(in-out), display.FormatBytes(in), display.FormatBytes(out))
	if stats.valid {
		log.Info("  Ratio IQR: %.0f%% – %.0f%% (outlier < %.0f%% or > %.0f%%)",
			stats.q1, stats.q3, stats.outlierLo, stats.outlierHi)
	}
	if failed > 0 {
		log.Error("  %d file(s) could not be optimized", failed)
	}
	if outliers > 0 {
		log.Warn("  %d outlier(s) flagged [*]", outliers)
	}
	if extremes > 0 {
		log.Error("  %d extreme outlier(s) flagged [!]", extremes)
	}
	if outliers == 0 && extremes == 0 {
		log.Success("  No outliers detected")
	}
}

func optimizedCell(r AnalysisRow) string {
	if r.Err != nil {
		return "error"
	}
	return display.FormatBytes(r.OutputBytes)
}

func ratioCell(r AnalysisRow) string {
	if r.Err != nil {
		return "n/a"
	}
	return display.FormatRatio(r.InputBytes, r.OutputBytes)
}

var (
	extremeColor = color.New(color.FgRed)
	outlierColor = color.New(color.FgHiYellow)
)

func formatFlag(class string) string {
	switch class {
	case "extreme":
		return extremeColor.Sprint("[!]")
	case "outlier":
		return outlierColor.Sprint("[*]")
	default:
		return ""
	}
}

// colorPad pads a plain string to width, then wraps it in the class color.
func colorPad(s string, width int, class string) string {
	padded := fmt.Sprintf("%-*s", width, s)
	switch class {
	case "extreme":
		return extremeColor.Sprint(padded)
	case "outlier":
		return outlierColor.Sprint(padded)
	default:
		return padded
	}
}

// printProgress shows a live counter. On a TTY it writes an inline
// \r-overwritten line; otherwise it is a no-op.
func printProgress(out io.Writer, isTTY bool, current, total, failed int, name string) {
	if !isTTY {
		return
	}
	pct := current * 100 / total
	status := fmt.Sprintf("  Optimizing [%d/%d] %d%% ", current, total, pct)
	if failed > 0 {
		status += fmt.Sprintf("(%d failed) ", failed)
	}

	const maxName = 40
	if len(name) > maxName {
		name = name[:maxName-1] + "…"
	}
	status += name

	// Pad to 80 chars to overwrite previous longer lines, then \r.
	if len(status) < 80 {
		status += strings.Repeat(" ", 80-len(status))
	}
	fmt.Fprintf(out, "\r%s", status)
}

// clearProgress erases the inline progress line on a TTY.
func clearProgress(out io.Writer) {
	fmt.Fprintf(out, "\r%s\r", strings.Repeat(" ", 80))
}

// percentile computes the p-th percentile using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
