// Package logs is the diagnostics sink of the cache. Entries are kept in a
// bounded ring buffer for health analysis and forwarded to zap.
package logs

import (
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	INFO  Level = "INFO"
	WARN  Level = "WARN"
	ERROR Level = "ERROR"
	DEBUG Level = "DEBUG"
)

// levelPriority defines the priority of each log level
// higher value= more severe
var levelPriority = map[Level]int{
	DEBUG: 1,
	INFO:  2,
	WARN:  3,
	ERROR: 4,
}

// Category lets consumers tell diagnostic records apart without parsing
// messages.
type Category string

const (
	CategoryGeneral Category = "general"
	// CategoryCount carries a per-kind row count from a sweep or clear.
	CategoryCount Category = "count"
	// CategorySummary closes a sweep or clear.
	CategorySummary Category = "summary"
	// CategoryError records a failed store operation.
	CategoryError Category = "error"
)

type Entry struct {
	TimeStamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Category  Category       `json:"category"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type Logger struct {
	mu      sync.Mutex
	entries []Entry
	maxSize int
	level   Level
	sink    *zap.Logger
}

// level: minimum log level to record(e.g., INFO, WARN, ERROR,DEBUG)
//
// maxsize:maximum number of log entries kept in memory
func NewLogger(maxSize int, level Level) *Logger {
	return &Logger{
		entries: make([]Entry, 0, maxSize),
		maxSize: maxSize,
		level:   level,
		sink:    zap.NewNop(),
	}
}

// WithSink forwards every recorded entry to z as well.
func (l *Logger) WithSink(z *zap.Logger) *Logger {
	if z != nil {
		l.sink = z
	}
	return l
}

// ParseLevel maps a case-insensitive level name to a Level.
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelPriority[level]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// ZapLevel returns the zap equivalent of level.
func ZapLevel(level Level) zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// log is the internal logging function
// it applies level filtering and ring buffer behavior
func (l *Logger) log(level Level, category Category, msg string, fields []zap.Field) {
	//filter logs below the current level
	if levelPriority[level] < levelPriority[l.level] {
		return
	}

	entry := Entry{
		TimeStamp: time.Now(),
		Level:     level,
		Category:  category,
		Message:   msg,
	}
	if len(fields) > 0 {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range fields {
			f.AddTo(enc)
		}
		entry.Fields = enc.Fields
	}

	l.mu.Lock()
	if l.maxSize > 0 {
		if len(l.entries) >= l.maxSize {
			//remove oldest entry(ring behavior)
			l.entries = l.entries[1:]
		}
		l.entries = append(l.entries, entry)
	}
	l.mu.Unlock()

	fields = append(fields, zap.String("category", string(category)))
	switch level {
	case DEBUG:
		l.sink.Debug(msg, fields...)
	case INFO:
		l.sink.Info(msg, fields...)
	case WARN:
		l.sink.Warn(msg, fields...)
	case ERROR:
		l.sink.Error(msg, fields...)
	}
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.log(DEBUG, CategoryGeneral, msg, fields)
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.log(INFO, CategoryGeneral, msg, fields)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.log(WARN, CategoryGeneral, msg, fields)
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.log(ERROR, CategoryGeneral, msg, fields)
}

// Count records a per-kind row count.
func (l *Logger) Count(msg string, fields ...zap.Field) {
	l.log(INFO, CategoryCount, msg, fields)
}

// Summary records the outcome of a whole sweep or clear.
func (l *Logger) Summary(msg string, fields ...zap.Field) {
	l.log(INFO, CategorySummary, msg, fields)
}

// Failure records a failed operation together with its cause.
func (l *Logger) Failure(msg string, err error, fields ...zap.Field) {
	l.log(ERROR, CategoryError, msg, append(fields, zap.Error(err)))
}

func (l *Logger) GetLast(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 {
		return []Entry{}
	}
	start := 0
	if n < len(l.entries) {
		start = len(l.entries) - n
	}
	out := make([]Entry, len(l.entries)-start)
	for i, e := range l.entries[start:] {
		e.Fields = maps.Clone(e.Fields)
		out[i] = e
	}
	return out
}

// GetByCategory returns the buffered entries of one category, oldest first.
func (l *Logger) GetByCategory(category Category) []Entry {
	var out []Entry
	for _, e := range l.GetLast(l.maxSize) {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}
