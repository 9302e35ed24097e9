package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/backmassage/svgbatch/internal/config"
	"github.com/backmassage/svgbatch/internal/logging"
	"github.com/backmassage/svgbatch/internal/optimizer"
	"github.com/backmassage/svgbatch/internal/svgo"
)

// --- Filter and listing tests ---

func TestIsSVG(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"icon.svg", true},
		{"a.b.svg", true},
		{".svg", true},
		{"icon.SVG", false},
		{"icon.Svg", false},
		{"icon.svgx", false},
		{"icon.svg.bak", false},
		{"svg", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSVG(tt.name); got != tt.want {
				t.Errorf("IsSVG(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestListEntries_SortedWithDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.svg", "<svg/>")
	writeFile(t, dir, "a.txt", "text")
	mkdir(t, dir, "nested")

	entries, err := ListEntries(dir)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	want := []Entry{
		{Name: "a.txt", Path: filepath.Join(dir, "a.txt")},
		{Name: "b.svg", Path: filepath.Join(dir, "b.svg")},
		{Name: "nested", IsDir: true, Path: filepath.Join(dir, "nested")},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("got %+v, want %+v", entries, want)
	}
}

func TestListEntries_MissingDir(t *testing.T) {
	_, err := ListEntries(filepath.Join(t.TempDir(), "temp"))
	if !errors.Is(err, ErrDirectoryAccess) {
		t.Fatalf("err = %v, want ErrDirectoryAccess", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err should wrap the OS error, got %v", err)
	}
}

func TestFilter_SelectsByNameOnly(t *testing.T) {
	entries := []Entry{
		{Name: "a.svg"},
		{Name: "b.txt"},
		{Name: "c.SVG"},
		{Name: "folder.svg", IsDir: true},
	}
	sel := Filter(entries, nil)
	if got := entryNames(sel.Files); !reflect.DeepEqual(got, []string{"a.svg", "folder.svg"}) {
		t.Errorf("selected %v", got)
	}
	if len(sel.Ignored) != 0 {
		t.Errorf("nil matcher ignored %v", sel.Ignored)
	}
}

// --- Run tests ---

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.svg", "<svg>   <rect/>   </svg>")
	writeFile(t, dir, "b.txt", "keep   me")
	writeFile(t, dir, "c.SVG", "<svg>   </svg>")

	cfg := newTestConfig(dir)
	opt := newFakeOptimizer()
	stats, err := Run(context.Background(), &cfg, opt, svgo.DefaultConfig(), testLogger(t, &cfg, io.Discard))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := readFile(t, dir, "a.svg"); got != "<svg> <rect/> </svg>" {
		t.Errorf("a.svg = %q", got)
	}
	if got := readFile(t, dir, "b.txt"); got != "keep   me" {
		t.Errorf("b.txt changed: %q", got)
	}
	if got := readFile(t, dir, "c.SVG"); got != "<svg>   </svg>" {
		t.Errorf("c.SVG changed: %q", got)
	}
	if stats.Listed != 3 || stats.Selected != 1 || stats.Optimized != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if n := len(opt.Calls()); n != 1 {
		t.Errorf("optimizer called %d times, want 1", n)
	}
}

func TestRun_ConfigFidelity(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.svg", "b.svg", "c.svg"} {
		writeFile(t, dir, name, "<svg/>")
	}

	cfg := newTestConfig(dir)
	opt := newFakeOptimizer()
	if _, err := Run(context.Background(), &cfg, opt, svgo.DefaultConfig(), testLogger(t, &cfg, io.Discard)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	calls := opt.Calls()
	if len(calls) != 3 {
		t.Fatalf("got %d calls, want 3", len(calls))
	}
	for _, c := range calls {
		if !reflect.DeepEqual(c.plugins, svgo.DefaultConfig()) {
			t.Errorf("%s optimized with %+v", c.name, c.plugins)
		}
		if !reflect.DeepEqual(c.plugins.Names(), []string{svgo.ConvertPathData, svgo.RemoveUselessDefs, svgo.MergePaths}) {
			t.Errorf("plugin order = %v", c.plugins.Names())
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.svg", "<svg>  <g>  </g>  </svg>")
	writeFile(t, dir, "b.svg", "<svg>\n\n<path/>\n</svg>")

	cfg := newTestConfig(dir)
	log := testLogger(t, &cfg, io.Discard)
	if _, err := Run(context.Background(), &cfg, newFakeOptimizer(), svgo.DefaultConfig(), log); err != nil {
		t.Fatal(err)
	}
	first := map[string]string{"a.svg": readFile(t, dir, "a.svg"), "b.svg": readFile(t, dir, "b.svg")}

	stats, err := Run(context.Background(), &cfg, newFakeOptimizer(), svgo.DefaultConfig(), log)
	if err != nil {
		t.Fatal(err)
	}
	for name, want := range first {
		if got := readFile(t, dir, name); got != want {
			t.Errorf("%s changed on second run: %q -> %q", name, want, got)
		}
	}
	if stats.Unchanged != 2 {
		t.Errorf("Unchanged = %d, want 2", stats.Unchanged)
	}
}

func TestRun_AbortOnFirstError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.svg", "<svg>  </svg>")
	mkdir(t, dir, "b.svg")
	writeFile(t, dir, "c.svg", "<svg>  </svg>")

	cfg := newTestConfig(dir)
	stats, err := Run(context.Background(), &cfg, newFakeOptimizer(), svgo.DefaultConfig(), testLogger(t, &cfg, io.Discard))
	if !errors.Is(err, ErrRead) {
		t.Fatalf("err = %v, want ErrRead", err)
	}
	if !strings.Contains(err.Error(), "b.svg") {
		t.Errorf("error should name the file: %v", err)
	}
	if got := readFile(t, dir, "a.svg"); got != "<svg> </svg>" {
		t.Errorf("a.svg = %q, want optimized", got)
	}
	if got := readFile(t, dir, "c.svg"); got != "<svg>  </svg>" {
		t.Errorf("c.svg = %q, want untouched", got)
	}
	if stats.Optimized != 1 || stats.Failed != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRun_ContinuePastErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.svg", "<svg>  </svg>")
	mkdir(t, dir, "b.svg")
	writeFile(t, dir, "c.svg", "<svg>  </svg>")
	writeBytes(t, dir, "d.svg", []byte{'<', 0xff, 0xfe, '>'})

	cfg := newTestConfig(dir)
	cfg.ErrorPolicy = config.PolicyContinue
	var logBuf bytes.Buffer
	stats, err := Run(context.Background(), &cfg, newFakeOptimizer(), svgo.DefaultConfig(), testLogger(t, &cfg, &logBuf))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := readFile(t, dir, "c.svg"); got != "<svg> </svg>" {
		t.Errorf("c.svg = %q, want optimized", got)
	}
	if stats.Optimized != 2 || stats.Failed != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.Failures) != 2 {
		t.Fatalf("failures = %+v", stats.Failures)
	}
	for i, name := range []string{"b.svg", "d.svg"} {
		f := stats.Failures[i]
		if f.Name != name || f.Stage != StageRead || !errors.Is(f.Err, ErrRead) {
			t.Errorf("failure[%d] = %+v", i, f)
		}
	}
	if !strings.Contains(logBuf.String(), "Failed files:") {
		t.Error("failure summary not logged")
	}
}

func TestRun_OptimizerError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.svg", "<svg")

	cfg := newTestConfig(dir)
	opt := newFakeOptimizer()
	opt.fn = func(string) (string, error) {
		return "", fmt.Errorf("%w: unclosed root tag", optimizer.ErrParse)
	}
	_, err := Run(context.Background(), &cfg, opt, svgo.DefaultConfig(), testLogger(t, &cfg, io.Discard))
	if !errors.Is(err, ErrOptimize) || !errors.Is(err, optimizer.ErrParse) {
		t.Fatalf("err = %v, want ErrOptimize wrapping ErrParse", err)
	}
	if got := readFile(t, dir, "broken.svg"); got != "<svg" {
		t.Errorf("failed file was rewritten: %q", got)
	}
}

func TestRun_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.svg", "<svg>    </svg>")

	cfg := newTestConfig(dir)
	cfg.DryRun = true
	stats, err := Run(context.Background(), &cfg, newFakeOptimizer(), svgo.DefaultConfig(), testLogger(t, &cfg, io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, dir, "a.svg"); got != "<svg>    </svg>" {
		t.Errorf("dry run modified a.svg: %q", got)
	}
	if stats.Optimized != 1 || stats.SpaceSaved() != 3 {
		t.Errorf("stats = %+v, saved %d", stats, stats.SpaceSaved())
	}
}

func TestRun_IgnoreRules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.svg", "<svg>  </svg>")
	writeFile(t, dir, "b.min.svg", "<svg>  </svg>")
	writeFile(t, dir, "sprite.svg", "<svg>  </svg>")
	writeFile(t, dir, ".svgbatchignore", "sprite.svg\n")

	cfg := newTestConfig(dir)
	cfg.Excludes = []string{"*.min.svg"}
	stats, err := Run(context.Background(), &cfg, newFakeOptimizer(), svgo.DefaultConfig(), testLogger(t, &cfg, io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Selected != 1 || stats.Ignored != 2 || stats.Optimized != 1 {
		t.Errorf("stats = %+v", stats)
	}
	for _, name := range []string{"b.min.svg", "sprite.svg"} {
		if got := readFile(t, dir, name); got != "<svg>  </svg>" {
			t.Errorf("%s was rewritten: %q", name, got)
		}
	}
}

func TestRun_MissingDirectory(t *testing.T) {
	cfg := newTestConfig(filepath.Join(t.TempDir(), "temp"))
	_, err := Run(context.Background(), &cfg, newFakeOptimizer(), svgo.DefaultConfig(), testLogger(t, &cfg, io.Discard))
	if !errors.Is(err, ErrDirectoryAccess) {
		t.Errorf("err = %v, want ErrDirectoryAccess", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.svg", "<svg>  </svg>")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := newTestConfig(dir)
	stats, err := Run(ctx, &cfg, newFakeOptimizer(), svgo.DefaultConfig(), testLogger(t, &cfg, io.Discard))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if stats.Skipped != 1 || stats.Optimized != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if got := readFile(t, dir, "a.svg"); got != "<svg>  </svg>" {
		t.Errorf("a.svg changed after cancel: %q", got)
	}
}

func TestRun_ParallelReportsInOrder(t *testing.T) {
	dir := t.TempDir()
	const n = 12
	for i := 0; i < n; i++ {
		writeFile(t, dir, fmt.Sprintf("f%02d.svg", i), fmt.Sprintf("<svg>  %d  </svg>", i))
	}

	cfg := newTestConfig(dir)
	cfg.Jobs = 4
	opt := newFakeOptimizer()
	opt.delay = func(svg string) time.Duration {
		// Earlier files finish later.
		return time.Duration(n-len(svg)%n) * time.Millisecond
	}
	var logBuf bytes.Buffer
	stats, err := Run(context.Background(), &cfg, opt, svgo.DefaultConfig(), testLogger(t, &cfg, &logBuf))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Optimized != n {
		t.Fatalf("optimized %d, want %d", stats.Optimized, n)
	}

	out := logBuf.String()
	last := -1
	for i := 0; i < n; i++ {
		tag := fmt.Sprintf("[%d/%d] f%02d.svg", i+1, n, i)
		idx := strings.Index(out, tag)
		if idx < 0 {
			t.Fatalf("missing %q in log", tag)
		}
		if idx < last {
			t.Errorf("%q reported out of order", tag)
		}
		last = idx
	}
}

func TestRun_ParallelAbortStopsNewFiles(t *testing.T) {
	dir := t.TempDir()
	const n = 20
	for i := 0; i < n; i++ {
		writeFile(t, dir, fmt.Sprintf("f%02d.svg", i), "<svg>  </svg>")
	}
	writeFile(t, dir, "a-bad.svg", "broken")

	cfg := newTestConfig(dir)
	cfg.Jobs = 2
	opt := newFakeOptimizer()
	opt.fn = func(svg string) (string, error) {
		if svg == "broken" {
			return "", errors.New("boom")
		}
		time.Sleep(5 * time.Millisecond)
		return collapse(svg), nil
	}
	stats, err := Run(context.Background(), &cfg, opt, svgo.DefaultConfig(), testLogger(t, &cfg, io.Discard))
	if !errors.Is(err, ErrOptimize) {
		t.Fatalf("err = %v, want ErrOptimize", err)
	}
	if stats.Skipped == 0 {
		t.Errorf("no file was skipped after the failure: %+v", stats)
	}
	if stats.Optimized+stats.Failed+stats.Skipped != n+1 {
		t.Errorf("counts do not add up: %+v", stats)
	}
}

func TestRun_ParallelContinue(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		writeFile(t, dir, fmt.Sprintf("f%d.svg", i), "<svg>  </svg>")
	}
	mkdir(t, dir, "f3x.svg")

	cfg := newTestConfig(dir)
	cfg.Jobs = 3
	cfg.ErrorPolicy = config.PolicyContinue
	stats, err := Run(context.Background(), &cfg, newFakeOptimizer(), svgo.DefaultConfig(), testLogger(t, &cfg, io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Optimized != 6 || stats.Failed != 1 || stats.Skipped != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.Failures) != 1 || stats.Failures[0].Name != "f3x.svg" {
		t.Errorf("failures = %+v", stats.Failures)
	}
}

// --- ProcessFile tests ---

func TestProcessFile_PreservesMode(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.svg", "<svg>  </svg>")
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}

	res := ProcessFile(context.Background(), path, newFakeOptimizer(), svgo.DefaultConfig())
	if res.Failed() {
		t.Fatalf("ProcessFile: %v", res.Err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	if res.InputBytes != 13 || res.OutputBytes != 12 || !res.Changed {
		t.Errorf("result = %+v", res)
	}
}

func TestProcessFile_Truncates(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.svg", "<svg>"+strings.Repeat(" ", 100)+"</svg>")

	opt := newFakeOptimizer()
	opt.fn = func(string) (string, error) { return "<svg/>", nil }
	if res := ProcessFile(context.Background(), path, opt, svgo.DefaultConfig()); res.Failed() {
		t.Fatal(res.Err)
	}
	if got := readFile(t, dir, "a.svg"); got != "<svg/>" {
		t.Errorf("content = %q, want exactly the optimizer output", got)
	}
}

func TestProcessFile_WriteError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	dir := t.TempDir()
	path := writeFile(t, dir, "a.svg", "<svg>  </svg>")
	if err := os.Chmod(path, 0o444); err != nil {
		t.Fatal(err)
	}

	res := ProcessFile(context.Background(), path, newFakeOptimizer(), svgo.DefaultConfig())
	if res.Stage != StageWrite || !errors.Is(res.Err, ErrWrite) {
		t.Errorf("result = %+v, want write failure", res)
	}
}

// --- Analyze tests ---

func TestAnalyze_ReportsWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.svg", "<svg>    </svg>")
	writeFile(t, dir, "b.svg", "<svg/>")
	mkdir(t, dir, "c.svg")

	cfg := newTestConfig(dir)
	var table bytes.Buffer
	rows, err := Analyze(context.Background(), &cfg, newFakeOptimizer(), svgo.DefaultConfig(), testLogger(t, &cfg, io.Discard), &table)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0].InputBytes != 15 || rows[0].OutputBytes != 12 {
		t.Errorf("row a.svg = %+v", rows[0])
	}
	if rows[2].Err == nil {
		t.Error("directory c.svg should fail to read")
	}
	if got := readFile(t, dir, "a.svg"); got != "<svg>    </svg>" {
		t.Errorf("Analyze modified a.svg: %q", got)
	}
	out := table.String()
	for _, want := range []string{"File", "a.svg", "80%", "n/a"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestComputeStats(t *testing.T) {
	if computeStats([]float64{1, 2, 3}).valid {
		t.Error("fewer than four values should not produce bounds")
	}
	b := computeStats([]float64{50, 52, 54, 56, 58, 60, 99})
	if !b.valid {
		t.Fatal("expected valid bounds")
	}
	if got := b.classify(55); got != "" {
		t.Errorf("classify(55) = %q", got)
	}
	if got := b.classify(99); got == "" {
		t.Error("99 should be flagged")
	}
}

// --- Watch tests ---

func TestWatch_OptimizesChangesAndIgnoresOwnWrites(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.svg", "<svg>   </svg>")

	cfg := newTestConfig(dir)
	cfg.WatchDebounce = 30 * time.Millisecond
	opt := newFakeOptimizer()

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		stats RunStats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		s, err := Watch(ctx, &cfg, opt, svgo.DefaultConfig(), testLogger(t, &cfg, io.Discard))
		done <- result{s, err}
	}()

	waitFor(t, func() bool { return readFile(t, dir, "a.svg") == "<svg> </svg>" })

	writeFile(t, dir, "b.svg", "<svg>    <g/>   </svg>")
	writeFile(t, dir, "notes.txt", "x    y")
	waitFor(t, func() bool { return readFile(t, dir, "b.svg") == "<svg> <g/> </svg>" })

	// Give the watcher time to see the writes made above.
	time.Sleep(200 * time.Millisecond)
	cancel()

	var r result
	select {
	case r = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	if r.err != nil {
		t.Fatalf("Watch: %v", r.err)
	}

	counts := map[string]int{}
	for _, c := range opt.Calls() {
		counts[c.name]++
	}
	if counts["<svg>   </svg>"] != 1 {
		t.Errorf("a.svg optimized %d times, want 1", counts["<svg>   </svg>"])
	}
	for in := range counts {
		if in == "<svg> </svg>" || in == "<svg> <g/> </svg>" {
			t.Errorf("own write %q was optimized again", in)
		}
	}
	if readFile(t, dir, "notes.txt") != "x    y" {
		t.Error("non-SVG file was modified")
	}
	if r.stats.Optimized < 2 {
		t.Errorf("stats = %+v", r.stats)
	}
}

// --- Helpers ---

type fakeCall struct {
	name    string // input document
	plugins svgo.Config
}

// fakeOptimizer collapses whitespace runs, which is idempotent.
type fakeOptimizer struct {
	fn    func(svg string) (string, error)
	delay func(svg string) time.Duration

	mu    sync.Mutex
	calls []fakeCall
}

func newFakeOptimizer() *fakeOptimizer {
	return &fakeOptimizer{fn: func(svg string) (string, error) { return collapse(svg), nil }}
}

func (f *fakeOptimizer) Optimize(ctx context.Context, svg string, plugins svgo.Config) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{name: svg, plugins: plugins})
	f.mu.Unlock()
	if f.delay != nil {
		time.Sleep(f.delay(svg))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.fn(svg)
}

func (f *fakeOptimizer) Calls() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.calls...)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func newTestConfig(dir string) config.Config {
	cfg := config.DefaultConfig()
	cfg.Dir = dir
	cfg.ColorMode = config.ColorNever
	return cfg
}

func testLogger(t *testing.T, cfg *config.Config, w io.Writer) *logging.Logger {
	t.Helper()
	log, err := logging.NewLoggerWithWriters(cfg, w, w)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	return writeBytes(t, dir, name, []byte(content))
}

func writeBytes(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func mkdir(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
		t.Fatal(err)
	}
}

func entryNames(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within 3s")
}
