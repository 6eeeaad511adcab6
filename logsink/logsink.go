// Package logsink is the operator-facing log of webhook deliveries and
// deployments: timestamped, level-tagged, append-only entries fanned out to
// one or more sinks.
package logsink

import (
	"fmt"
	"sync"
	"time"
)

/* Level represents the severity of a log entry
 * Only the three levels the receiver emits are modelled
 */
type Level int

const (
	Info Level = iota + 1
	Warn
	Error
)

// String returns the tag written to the log file
func (l Level) String() string {
	switch l {
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Entry is a single, immutable log line
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
}

// Sink persists entries. Implementations must be safe for concurrent use.
type Sink interface {
	Append(entry Entry) error
}

// Logger stamps messages and appends them to every sink, in emission order
type Logger struct {
	mu      sync.Mutex
	sinks   []Sink
	now     func() time.Time
	onError func(error)
}

type option func(*Logger)

// WithClock overrides the time source
func WithClock(now func() time.Time) option {
	return func(l *Logger) {
		l.now = now
	}
}

// WithErrorHandler is called when a sink fails to append an entry
func WithErrorHandler(fn func(error)) option {
	return func(l *Logger) {
		l.onError = fn
	}
}

// New creates a logger writing to the given sinks
func New(sinks []Sink, opts ...option) *Logger {
	l := &Logger{
		sinks:   sinks,
		now:     time.Now,
		onError: func(error) {},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Log appends msg at the given level to all sinks
func (l *Logger) Log(level Level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		Time:    l.now(),
		Level:   level,
		Message: msg,
	}
	for _, s := range l.sinks {
		if err := s.Append(entry); err != nil {
			l.onError(fmt.Errorf("appending log entry: %w", err))
		}
	}
}

func (l *Logger) Infof(format string, args ...any) {
	l.Log(Info, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.Log(Warn, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.Log(Error, fmt.Sprintf(format, args...))
}
