package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/backmassage/svgbatch/internal/config"
	"github.com/backmassage/svgbatch/internal/term"
)

// Level tag colors. Rendering is a no-op while color.NoColor is set.
var (
	colorInfo    = color.New(color.FgHiBlue, color.Bold)
	colorSuccess = color.New(color.FgHiGreen, color.Bold)
	colorWarn    = color.New(color.FgHiYellow, color.Bold)
	colorError   = color.New(color.FgHiRed, color.Bold)
	colorDebug   = color.New(color.FgHiCyan, color.Bold)
)

// Logger provides leveled, optionally colored logging with optional file sink.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	errOut   io.Writer
	file     *os.File
	filePath string
	verbose  bool
}

// NewLogger configures colors from cfg and optionally opens cfg.LogFile.
// Call Close() when done if LogFile was set.
func NewLogger(cfg *config.Config) (*Logger, error) {
	return NewLoggerWithWriters(cfg, os.Stdout, os.Stderr)
}

// NewLoggerWithWriters is NewLogger with explicit console writers (useful for testing).
// ERROR lines go to errOut, everything else to out.
func NewLoggerWithWriters(cfg *config.Config, out, errOut io.Writer) (*Logger, error) {
	term.Configure(cfg.ColorMode)

	l := &Logger{out: out, errOut: errOut, verbose: cfg.Verbose}

	if cfg.LogFile != "" {
		dir := filepath.Dir(cfg.LogFile)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.file = f
		l.filePath = cfg.LogFile
	}
	return l, nil
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) line(level string, c *color.Color, text string) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.out
	if level == "ERROR" {
		out = l.errOut
	}
	_, _ = io.WriteString(out, ts+" "+c.Sprint("["+level+"]")+" "+text+"\n")
	if l.file != nil {
		_, _ = io.WriteString(l.file, ts+" ["+level+"] "+text+"\n")
	}
}

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...interface{}) {
	l.line("INFO", colorInfo, fmt.Sprintf(format, args...))
}

// Success logs at SUCCESS level (green).
func (l *Logger) Success(format string, args ...interface{}) {
	l.line("SUCCESS", colorSuccess, fmt.Sprintf(format, args...))
}

// Warn logs at WARN level (yellow).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.line("WARN", colorWarn, fmt.Sprintf(format, args...))
}

// Error logs at ERROR level (red), to the error writer.
func (l *Logger) Error(format string, args ...interface{}) {
	l.line("ERROR", colorError, fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level (cyan) only when verbose; no-op otherwise.
func (l *Logger) Debug(verbose bool, format string, args ...interface{}) {
	if !verbose {
		return
	}
	l.line("DEBUG", colorDebug, fmt.Sprintf(format, args...))
}
