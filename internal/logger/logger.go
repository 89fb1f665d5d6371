// Package logger is the process-wide structured logging front-end. It wraps
// log/slog with a colored text handler for terminals, a JSON handler for
// machine consumption, and checkpoint-specific field constructors.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config selects the log level, format, and destination.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

type state struct {
	mu     sync.RWMutex
	out    io.Writer
	color  bool
	format string
	level  slog.LevelVar
	log    *slog.Logger
}

var global = func() *state {
	s := &state{out: os.Stdout, format: "text"}
	s.color = isTerminal(os.Stdout.Fd())
	s.rebuild()
	return s
}()

// rebuild swaps the slog handler for the current settings. Callers hold mu.
func (s *state) rebuild() {
	opts := &slog.HandlerOptions{Level: &s.level}
	var h slog.Handler
	if s.format == "json" {
		h = slog.NewJSONHandler(s.out, opts)
	} else {
		h = newTextHandler(s.out, opts, s.color)
	}
	s.log = slog.New(h)
}

func (s *state) logger() *slog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return 0, false
}

// Init reconfigures the global logger. Empty fields keep their current
// values. Output may be "stdout", "stderr", or a file path opened in append
// mode.
func Init(cfg Config) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	switch strings.ToLower(cfg.Output) {
	case "":
		// keep current destination
	case "stdout":
		global.out = os.Stdout
		global.color = isTerminal(os.Stdout.Fd())
	case "stderr":
		global.out = os.Stderr
		global.color = isTerminal(os.Stderr.Fd())
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		global.out = f
		global.color = false
	}

	if lv, ok := parseLevel(cfg.Level); ok {
		global.level.Set(lv)
	}
	if f := strings.ToLower(cfg.Format); f == "text" || f == "json" {
		global.format = f
	}

	global.rebuild()
	return nil
}

// InitWithWriter points the global logger at w. Test helper.
func InitWithWriter(w io.Writer, level, format string, color bool) {
	global.mu.Lock()
	defer global.mu.Unlock()

	global.out = w
	global.color = color
	if lv, ok := parseLevel(level); ok {
		global.level.Set(lv)
	}
	if f := strings.ToLower(format); f == "text" || f == "json" {
		global.format = f
	}
	global.rebuild()
}

// SetLevel changes the minimum level. Unknown names are ignored.
func SetLevel(level string) {
	if lv, ok := parseLevel(level); ok {
		global.level.Set(lv)
	}
}

// Debug logs at debug level with alternating key/value fields.
func Debug(msg string, args ...any) { global.logger().Debug(msg, args...) }

// Info logs at info level with alternating key/value fields.
func Info(msg string, args ...any) { global.logger().Info(msg, args...) }

// Warn logs at warn level with alternating key/value fields.
func Warn(msg string, args ...any) { global.logger().Warn(msg, args...) }

// Error logs at error level with alternating key/value fields.
func Error(msg string, args ...any) { global.logger().Error(msg, args...) }

// DebugCtx is Debug plus the operation fields carried by ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	global.logger().Debug(msg, withContextFields(ctx, args)...)
}

// InfoCtx is Info plus the operation fields carried by ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	global.logger().Info(msg, withContextFields(ctx, args)...)
}

// WarnCtx is Warn plus the operation fields carried by ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	global.logger().Warn(msg, withContextFields(ctx, args)...)
}

// ErrorCtx is Error plus the operation fields carried by ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	global.logger().Error(msg, withContextFields(ctx, args)...)
}

// withContextFields prepends the LogContext fields so they lead each line.
func withContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	fields := make([]any, 0, 12+len(args))
	if lc.TraceID != "" {
		fields = append(fields, KeyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		fields = append(fields, KeySpanID, lc.SpanID)
	}
	if lc.Operation != "" {
		fields = append(fields, KeyOperation, lc.Operation)
	}
	if lc.Archive != "" {
		fields = append(fields, KeyArchive, lc.Archive)
	}
	if lc.TaskID != "" {
		fields = append(fields, KeyTaskID, lc.TaskID)
	}
	if lc.Slot >= 0 {
		fields = append(fields, KeySlot, lc.Slot)
	}
	return append(fields, args...)
}
