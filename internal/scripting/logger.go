package scripting

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Logger provides structured logging for the script host. Application logs
// go into a bounded in-memory ring queryable from scripts; terminal output
// (the output.* API) goes straight to the writer. The two streams are kept
// separate so chatty scripts do not bury diagnostics.
type Logger struct {
	logger  *slog.Logger
	handler *ringHandler
	out     io.Writer
	outMu   sync.Mutex
}

// LogEntry is a single captured log record.
type LogEntry struct {
	Time    time.Time         `json:"time"`
	Level   slog.Level        `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs"`
}

// NewLogger creates a logger retaining at most maxEntries records at or
// above minLevel.
func NewLogger(out io.Writer, maxEntries int, minLevel slog.Level) *Logger {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	handler := &ringHandler{
		entries:  make([]LogEntry, 0, maxEntries),
		maxSize:  maxEntries,
		minLevel: minLevel,
	}
	return &Logger{
		logger:  slog.New(handler),
		handler: handler,
		out:     out,
	}
}

// Slog returns the slog.Logger backed by the ring, for wiring into
// subsystems that take a structured logger.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// ringHandler implements slog.Handler over a bounded slice, oldest dropped
// first.
type ringHandler struct {
	entries  []LogEntry
	maxSize  int
	minLevel slog.Level
	mutex    sync.RWMutex
}

func (h *ringHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *ringHandler) Handle(_ context.Context, record slog.Record) error {
	attrs := make(map[string]string)
	record.Attrs(func(attr slog.Attr) bool {
		attrs[attr.Key] = attr.Value.String()
		return true
	})

	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.entries = append(h.entries, LogEntry{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
	})
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[1:]
	}
	return nil
}

func (h *ringHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *ringHandler) WithGroup(string) slog.Handler { return h }

// Debug logs a debug message.
func (l *Logger) Debug(msg string, attrs ...slog.Attr) {
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, attrs ...slog.Attr) {
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, attrs ...slog.Attr) {
	l.logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, attrs ...slog.Attr) {
	l.logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

// Printf logs a formatted message at info level.
func (l *Logger) Printf(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

// Print writes a message to the terminal output stream, newline-terminated.
func (l *Logger) Print(msg string) {
	l.outMu.Lock()
	defer l.outMu.Unlock()
	if l.out == nil {
		return
	}
	_, _ = l.out.Write([]byte(msg))
	if !strings.HasSuffix(msg, "\n") {
		_, _ = l.out.Write([]byte("\n"))
	}
}

// Printfln writes a formatted message to the terminal output stream.
func (l *Logger) Printfln(format string, args ...any) {
	l.Print(fmt.Sprintf(format, args...))
}

// GetLogs returns a copy of all retained entries.
func (l *Logger) GetLogs() []LogEntry {
	l.handler.mutex.RLock()
	defer l.handler.mutex.RUnlock()
	logs := make([]LogEntry, len(l.handler.entries))
	copy(logs, l.handler.entries)
	return logs
}

// GetRecentLogs returns the most recent count entries.
func (l *Logger) GetRecentLogs(count int) []LogEntry {
	l.handler.mutex.RLock()
	defer l.handler.mutex.RUnlock()
	if count <= 0 || count > len(l.handler.entries) {
		count = len(l.handler.entries)
	}
	start := len(l.handler.entries) - count
	logs := make([]LogEntry, count)
	copy(logs, l.handler.entries[start:])
	return logs
}

// SearchLogs returns entries whose message or attributes contain the query,
// case-insensitive.
func (l *Logger) SearchLogs(query string) []LogEntry {
	l.handler.mutex.RLock()
	defer l.handler.mutex.RUnlock()

	query = strings.ToLower(query)
	var matches []LogEntry
	for _, entry := range l.handler.entries {
		if strings.Contains(strings.ToLower(entry.Message), query) {
			matches = append(matches, entry)
			continue
		}
		for key, value := range entry.Attrs {
			if strings.Contains(strings.ToLower(key), query) ||
				strings.Contains(strings.ToLower(value), query) {
				matches = append(matches, entry)
				break
			}
		}
	}
	return matches
}

// ClearLogs drops all retained entries.
func (l *Logger) ClearLogs() {
	l.handler.mutex.Lock()
	defer l.handler.mutex.Unlock()
	l.handler.entries = l.handler.entries[:0]
}

// ParseLevel maps a config string to a slog level. Unknown strings fall
// back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
