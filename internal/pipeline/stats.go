package pipeline

// Stage names the step of the per-file transform that failed.
type Stage string

const (
	StageRead     Stage = "read"
	StageOptimize Stage = "optimize"
	StageWrite    Stage = "write"
)

// FileError is one recorded per-file failure.
type FileError struct {
	Name  string
	Stage Stage
	Err   error
}

// RunStats tracks aggregate counters and byte totals across a batch run.
type RunStats struct {
	Listed    int // Directory entries seen.
	Selected  int // Entries passing the SVG filter and ignore rules.
	Ignored   int // SVG entries excluded by ignore rules.
	Optimized int
	Unchanged int // Optimized files whose content did not change.
	Failed    int
	Skipped   int // Selected files never finished (abort or interrupt).

	TotalInputBytes  int64
	TotalOutputBytes int64

	Failures []FileError // In listing order.
}

// SpaceSaved returns the aggregate byte difference between inputs and outputs.
// Positive means outputs are smaller; negative means they grew.
func (s *RunStats) SpaceSaved() int64 {
	return s.TotalInputBytes - s.TotalOutputBytes
}

func (s *RunStats) record(r FileResult) {
	if r.Err != nil {
		s.Failed++
		s.Failures = append(s.Failures, FileError{Name: r.Name, Stage: r.Stage, Err: r.Err})
		return
	}
	s.Optimized++
	if !r.Changed {
		s.Unchanged++
	}
	s.TotalInputBytes += r.InputBytes
	s.TotalOutputBytes += r.OutputBytes
}

// add folds o into s. Used by watch mode to keep a running total.
func (s *RunStats) add(o RunStats) {
	s.Listed += o.Listed
	s.Selected += o.Selected
	s.Ignored += o.Ignored
	s.Optimized += o.Optimized
	s.Unchanged += o.Unchanged
	s.Failed += o.Failed
	s.Skipped += o.Skipped
	s.TotalInputBytes += o.TotalInputBytes
	s.TotalOutputBytes += o.TotalOutputBytes
	s.Failures = append(s.Failures, o.Failures...)
}
