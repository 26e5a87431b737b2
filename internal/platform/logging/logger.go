package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pscheid92/playtime/internal/platform/correlation"
)

// Logger is the application-wide structured logger instance.
var Logger *slog.Logger

const (
	fileMaxSizeMB  = 10
	fileMaxBackups = 3
	fileMaxAgeDays = 28
)

// ParseLevel maps "debug", "info", "warn", "error" to a slog level (defaults to info).
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler builds the tick-aware handler writing to w.
// format: "json" or "text" (defaults to "text")
func NewHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return correlation.NewHandler(handler)
}

// InitLogger initializes the global logger. When file is set, output also goes to a rotating
// log file. The returned closer flushes and closes that file; it is a no-op otherwise.
func InitLogger(level, format, file string) io.Closer {
	var w io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if file != "" {
		lj := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    fileMaxSizeMB,
			MaxBackups: fileMaxBackups,
			MaxAge:     fileMaxAgeDays,
		}
		w = io.MultiWriter(os.Stdout, lj)
		closer = lj
	}

	Logger = slog.New(NewHandler(w, level, format))
	slog.SetDefault(Logger)
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
