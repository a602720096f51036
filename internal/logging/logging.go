// Package logging provides zerolog-based structured logging for fedroute.
//
// Loggers are carried through request handling in the context. Every request gets a
// trace ID (a ULID) that is attached to all log events written with .Ctx(ctx), so a
// single routing decision can be followed across the validator, the directory lookup,
// the selector and the renderer.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Output and format names accepted in Config.
const (
	FormatJSON    = "json"
	FormatConsole = "console"

	OutputStderr = "stderr"
	OutputStdout = "stdout"
	OutputFile   = "file"
)

// Config describes how a logger is built.
type Config struct {
	// Level is a zerolog level name ("debug", "info", ...). Invalid values fall back to info.
	Level string
	// Format is "json" (default) or "console".
	Format string
	// Output is "stderr" (default), "stdout" or "file".
	Output string
	// File is the log file path when Output is "file".
	File string
	// Caller adds the caller location to each event.
	Caller bool
}

// LogPathResult reports where a logger created by NewLoggerWithPath writes.
type LogPathResult struct {
	Logger         zerolog.Logger
	FilePath       string
	UsingFile      bool
	FallbackUsed   bool
	FallbackReason string

	file *os.File
}

// Close releases the log file handle, if one was opened.
func (r *LogPathResult) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

//nolint:gochecknoglobals // process-wide fallback logger used when no logger is in context
var (
	defaultMu     sync.RWMutex
	defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger().Hook(TraceHook{})
)

// SetDefault replaces the fallback logger returned by FromContext.
func SetDefault(l zerolog.Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default returns the fallback logger.
func Default() zerolog.Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// ParseLevel parses a level name, returning zerolog.InfoLevel for empty or unknown names.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewLogger builds a logger writing to w according to cfg. Output/File in cfg are ignored.
func NewLogger(cfg Config, w io.Writer) zerolog.Logger {
	if strings.EqualFold(cfg.Format, FormatConsole) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger().Hook(TraceHook{})
}

// NewLoggerWithPath builds a logger for cfg, opening the log file when Output is "file".
// If the file cannot be opened the logger falls back to stderr and the result records why.
func NewLoggerWithPath(cfg Config) LogPathResult {
	switch cfg.Output {
	case OutputFile:
		if cfg.File == "" {
			return LogPathResult{
				Logger:         NewLogger(cfg, os.Stderr),
				FallbackUsed:   true,
				FallbackReason: "no log file configured",
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return LogPathResult{
				Logger:         NewLogger(cfg, os.Stderr),
				FallbackUsed:   true,
				FallbackReason: err.Error(),
			}
		}
		return LogPathResult{
			Logger:    NewLogger(cfg, f),
			FilePath:  cfg.File,
			UsingFile: true,
			file:      f,
		}
	case OutputStdout:
		return LogPathResult{Logger: NewLogger(cfg, os.Stdout)}
	default:
		return LogPathResult{Logger: NewLogger(cfg, os.Stderr)}
	}
}

// ComponentLogger returns a child logger tagged with the component name.
func ComponentLogger(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// PrintLogPathMessage tells the user where logs are being written.
func PrintLogPathMessage(w io.Writer, path string) {
	_, _ = fmt.Fprintf(w, "Logging to %s\n", path)
}

// PrintFallbackWarning tells the user that file logging could not be set up.
func PrintFallbackWarning(w io.Writer, reason string) {
	_, _ = fmt.Fprintf(w, "Warning: file logging unavailable (%s), logging to stderr\n", reason)
}
