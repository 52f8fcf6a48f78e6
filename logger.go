package vecstream

import (
	"log/slog"

	"github.com/torinriley/vecstream/logging"
)

// Logger is vecstream's structured logger, shared with collection and
// manager (package logging) so a caller-supplied handler applies uniformly
// across the whole DB.
type Logger = logging.Logger

// NewLogger creates a Logger with the given handler. A nil handler falls
// back to a text handler on stderr at info level.
func NewLogger(handler slog.Handler) *Logger { return logging.NewLogger(handler) }

// NewJSONLogger creates a Logger that emits JSON-formatted logs at level.
func NewJSONLogger(level slog.Level) *Logger { return logging.NewJSONLogger(level) }

// NewTextLogger creates a Logger that emits human-readable text logs at
// level.
func NewTextLogger(level slog.Level) *Logger { return logging.NewTextLogger(level) }

// NoopLogger discards all log output.
func NoopLogger() *Logger { return logging.NoopLogger() }
