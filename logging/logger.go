// Package logging provides vecstream's structured logger: a slog.Logger
// wrapper with per-operation helpers, so collection and manager share one
// set of field names and levels instead of each hand-rolling slog call
// sites. It is a separate package (rather than living in the root vecstream
// package) so collection and manager, which the root package imports, can
// import it back without an import cycle.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with vecstream-specific context: structured
// fields and per-operation helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler falls
// back to a text handler on stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that emits JSON-formatted logs at level.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NewTextLogger creates a Logger that emits human-readable text logs at
// level.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(1000)})
	return &Logger{Logger: slog.New(handler)}
}

// WithCollection returns a Logger with a "collection" field attached, used
// by manager to tag every log line a discovered or created Collection
// emits.
func (l *Logger) WithCollection(name string) *Logger {
	return &Logger{Logger: l.Logger.With("collection", name)}
}

// LogAdd logs an add_vector operation.
func (l *Logger) LogAdd(id string, dimension int, err error) {
	if err != nil {
		l.Error("add_vector failed", "id", id, "dimension", dimension, "error", err)
		return
	}
	l.Debug("add_vector completed", "id", id, "dimension", dimension)
}

// LogRemove logs a remove_vector operation.
func (l *Logger) LogRemove(id string, err error) {
	if err != nil {
		l.Error("remove_vector failed", "id", id, "error", err)
		return
	}
	l.Debug("remove_vector completed", "id", id)
}

// LogSearch logs a search_similar operation.
func (l *Logger) LogSearch(k, resultsFound int, filtered bool, err error) {
	if err != nil {
		l.Error("search_similar failed", "k", k, "filtered", filtered, "error", err)
		return
	}
	l.Debug("search_similar completed", "k", k, "filtered", filtered, "results", resultsFound)
}

// LogSave logs a save operation.
func (l *Logger) LogSave(dir string, err error) {
	if err != nil {
		l.Error("save failed", "dir", dir, "error", err)
		return
	}
	l.Info("save completed", "dir", dir)
}

// LogLoad logs a load operation.
func (l *Logger) LogLoad(dir string, err error) {
	if err != nil {
		l.Error("load failed", "dir", dir, "error", err)
		return
	}
	l.Info("load completed", "dir", dir)
}

// LogRebuild logs an index rebuild, including the rebuild-from-vectors path
// taken when index.bin is missing or inconsistent with ids.json on load.
func (l *Logger) LogRebuild(reason string, size int, err error) {
	if err != nil {
		l.Error("index rebuild failed", "reason", reason, "size", size, "error", err)
		return
	}
	l.Warn("rebuilding index", "reason", reason, "size", size)
}

// LogDiscoverSkip logs a collection skipped during manager startup
// discovery because its Load failed.
func (l *Logger) LogDiscoverSkip(name string, err error) {
	l.Warn("skipping undiscoverable collection", "name", name, "error", err)
}
