package plog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fernwoodlabs/fw-backup/pkg/util"
)

// LevelNotice sits between Debug and Info. It is used for per-entry progress
// output (file copied, entry added) that would drown the Info level.
const LevelNotice = slog.Level(-2)

// Re-exported levels so callers don't need to import log/slog for SetLevel.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// LevelDispatchHandler is a slog.Handler that writes log records to different
// handlers based on the record's level. INFO and below go to one handler,
// while WARNING and above go to another.
type LevelDispatchHandler struct {
	stdoutHandler slog.Handler
	stderrHandler slog.Handler
}

// Enabled checks if the level is enabled for either of the underlying handlers.
func (h *LevelDispatchHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.stdoutHandler.Enabled(ctx, level) || h.stderrHandler.Enabled(ctx, level)
}

// Handle dispatches the record to the appropriate handler.
func (h *LevelDispatchHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.stderrHandler.Handle(ctx, r)
	}
	return h.stdoutHandler.Handle(ctx, r)
}

// WithAttrs returns a new LevelDispatchHandler with the given attributes added.
func (h *LevelDispatchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithAttrs(attrs),
		stderrHandler: h.stderrHandler.WithAttrs(attrs),
	}
}

// WithGroup returns a new LevelDispatchHandler with the given group.
func (h *LevelDispatchHandler) WithGroup(name string) slog.Handler {
	return &LevelDispatchHandler{
		stdoutHandler: h.stdoutHandler.WithGroup(name),
		stderrHandler: h.stderrHandler.WithGroup(name),
	}
}

// fanoutHandler forwards every record to all wrapped handlers. It is used to
// tee console output into the append-only log file.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, hh := range h.handlers {
		if err := hh.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

var defaultLogger atomic.Pointer[slog.Logger]

// consoleHandler is kept so a file sink can be attached and detached without
// losing the console configuration.
var consoleHandler slog.Handler

// currentLevel holds the minimum level that the package-level log functions
// emit. Level filtering happens here, in front of the handlers, so that
// SetOutput in tests captures everything the current level allows.
var currentLevel atomic.Int64

// renameCustomLevels renders the NOTICE level with its own name instead of
// slog's default "INFO-2".
func renameCustomLevels(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelNotice {
			a.Value = slog.StringValue("NOTICE")
		}
	}
	return a
}

func newTextHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       LevelDebug, // Filtering happens in the package-level functions.
		ReplaceAttr: renameCustomLevels,
	})
}

func init() {
	consoleHandler = &LevelDispatchHandler{
		stdoutHandler: newTextHandler(os.Stdout),
		stderrHandler: newTextHandler(os.Stderr),
	}
	currentLevel.Store(int64(slog.LevelInfo))
	defaultLogger.Store(slog.New(consoleHandler))
}

// SetOutput allows redirecting the logger's output, primarily for testing.
// Any attached file sink is discarded.
func SetOutput(w io.Writer) {
	consoleHandler = newTextHandler(w)
	defaultLogger.Store(slog.New(consoleHandler))
}

// SetLevel sets the minimum level emitted by the package-level log functions.
func SetLevel(level slog.Level) {
	currentLevel.Store(int64(level))
}

// LevelFromString maps a configuration string to a log level.
// Unknown strings fall back to Info.
func LevelFromString(s string) slog.Level {
	switch s {
	case "debug":
		return LevelDebug
	case "notice":
		return LevelNotice
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// AddFile attaches an append-only log file to the logger. Every record that
// passes the current level is written both to the console and to the file.
// The returned function detaches the sink and closes the file.
func AddFile(path string) (func() error, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, util.UserWritableDirPerms); err != nil {
			return nil, fmt.Errorf("could not create log directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, util.UserWritableFilePerms)
	if err != nil {
		return nil, fmt.Errorf("could not open log file %s: %w", path, err)
	}

	defaultLogger.Store(slog.New(&fanoutHandler{
		handlers: []slog.Handler{consoleHandler, newTextHandler(f)},
	}))

	detach := func() error {
		defaultLogger.Store(slog.New(consoleHandler))
		return f.Close()
	}
	return detach, nil
}

func enabled(level slog.Level) bool {
	return level >= slog.Level(currentLevel.Load())
}

func log(level slog.Level, msg string, args ...any) {
	if !enabled(level) {
		return
	}
	defaultLogger.Load().Log(context.Background(), level, msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	log(LevelDebug, msg, args...)
}

// Notice logs a per-entry progress message.
func Notice(msg string, args ...any) {
	log(LevelNotice, msg, args...)
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	log(LevelWarn, msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	log(LevelError, msg, args...)
}
