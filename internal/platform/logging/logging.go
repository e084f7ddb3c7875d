package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

// Logger wraps slog with the printf-style tagged API used across the server.
type Logger struct {
	slogger *slog.Logger
	file    *os.File
}

// DefaultLogger is used by components that were constructed without one.
var DefaultLogger = &Logger{slogger: slog.New(newTextHandler(os.Stdout, slog.LevelInfo))}

// New creates a Logger writing to stdout and, when Dir is set, to a
// date-stamped file under it.
func New(cfg Config) (*Logger, error) {
	level := parseLevel(cfg.Level)

	var out io.Writer = os.Stdout
	var file *os.File
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		name := cfg.Filename
		if name == "" {
			name = "server.log"
		}
		path := filepath.Join(cfg.Dir, time.Now().Format("2006-01-02")+"-"+name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		out = io.MultiWriter(os.Stdout, f)
	}

	return &Logger{
		slogger: slog.New(newTextHandler(out, level)),
		file:    file,
	}, nil
}

// Slog exposes the structured logger for integrations that want it directly.
func (l *Logger) Slog() *slog.Logger {
	return l.slogger
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) Debug(format string, args ...any) { l.log(slog.LevelDebug, "", format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(slog.LevelInfo, "", format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(slog.LevelWarn, "", format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(slog.LevelError, "", format, args...) }

func (l *Logger) DebugTag(tag, format string, args ...any) {
	l.log(slog.LevelDebug, tag, format, args...)
}
func (l *Logger) InfoTag(tag, format string, args ...any) {
	l.log(slog.LevelInfo, tag, format, args...)
}
func (l *Logger) WarnTag(tag, format string, args ...any) {
	l.log(slog.LevelWarn, tag, format, args...)
}
func (l *Logger) ErrorTag(tag, format string, args ...any) {
	l.log(slog.LevelError, tag, format, args...)
}

func (l *Logger) log(level slog.Level, tag, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if tag != "" {
		msg = "[" + tag + "] " + msg
	}
	l.slogger.Log(context.Background(), level, msg)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// textHandler renders "2006-01-02 15:04:05.000 [LEVEL] message" lines with
// colorized levels on terminals.
type textHandler struct {
	writer io.Writer
	level  slog.Level
	attrs  []slog.Attr
	mu     *sync.Mutex
}

const (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

func newTextHandler(w io.Writer, level slog.Level) *textHandler {
	return &textHandler{writer: w, level: level, mu: &sync.Mutex{}}
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	var levelStr, levelColor string
	switch r.Level {
	case slog.LevelDebug:
		levelStr, levelColor = "DEBUG", colorDebug
	case slog.LevelWarn:
		levelStr, levelColor = "WARN", colorWarn
	case slog.LevelError:
		levelStr, levelColor = "ERROR", colorError
	default:
		levelStr, levelColor = "INFO", colorInfo
	}

	var sb strings.Builder
	sb.WriteString(colorTime + r.Time.Format("2006-01-02 15:04:05.000") + colorReset)
	sb.WriteString(" " + levelColor + "[" + levelStr + "]" + colorReset + " ")
	sb.WriteString(r.Message)
	for _, attr := range h.attrs {
		sb.WriteString(fmt.Sprintf(" %s=%v", attr.Key, attr.Value))
	}
	r.Attrs(func(attr slog.Attr) bool {
		sb.WriteString(fmt.Sprintf(" %s=%v", attr.Key, attr.Value))
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, sb.String())
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *textHandler) WithGroup(string) slog.Handler {
	return h
}
