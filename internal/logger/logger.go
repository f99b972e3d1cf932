package logger

import (
	"context"
	"io"
	"log/slog"
	"sort"

	"github.com/lmittmann/tint"
)

type Logger struct {
	json bool
	sl   *slog.Logger
}

// New returns a Logger writing to w. Text output goes through tint and is
// colored only when color is true.
func New(w io.Writer, jsonOutput, color bool, level slog.Leveler) *Logger {
	var h slog.Handler
	if jsonOutput {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		h = tint.NewHandler(w, &tint.Options{
			Level:      level,
			NoColor:    !color,
			TimeFormat: "2006-01-02 15:04:05.000",
		})
	}
	return &Logger{json: jsonOutput, sl: slog.New(h)}
}

func (l *Logger) log(level slog.Level, msg string, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	l.sl.Log(context.Background(), level, msg, args...)
}

func (l *Logger) Debug(msg string, fields map[string]any) { l.log(slog.LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields map[string]any)  { l.log(slog.LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.log(slog.LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields map[string]any) { l.log(slog.LevelError, msg, fields) }

// JSONEnabled reports whether this logger is configured to emit JSON output.
func (l *Logger) JSONEnabled() bool { return l.json }
