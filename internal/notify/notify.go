// Package notify defines the user-notification collaborator. The editor core
// reports outcomes (saved, deleted, load failed, step incomplete) through a
// [Notifier]; presenting them is left to the caller.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier delivers a message to the user. Implementations must be safe for
// concurrent use and must not block for long.
type Notifier interface {
	Notify(ctx context.Context, message string, level Level)
}

// Func adapts a plain function to [Notifier].
type Func func(ctx context.Context, message string, level Level)

// Notify calls f.
func (f Func) Notify(ctx context.Context, message string, level Level) { f(ctx, message, level) }

// Discard drops every notification.
var Discard Notifier = Func(func(context.Context, string, Level) {})

// Log writes notifications to a [slog.Logger].
type Log struct {
	logger *slog.Logger
}

// NewLog returns a notifier logging to l. A nil l uses [slog.Default].
func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = slog.Default()
	}
	return &Log{logger: l}
}

// Notify implements [Notifier].
func (n *Log) Notify(ctx context.Context, message string, level Level) {
	n.logger.Log(ctx, slogLevel(level), message, "notification", string(level))
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Notification is one message captured by [Recorder].
type Notification struct {
	Message string `json:"message"`
	Level   Level  `json:"level"`
}

// Recorder keeps notifications in memory. It is used by tests and by the HTTP
// API, which drains it to show pending notices.
type Recorder struct {
	// Limit caps how many notifications are kept; the oldest are dropped
	// first. Zero keeps everything.
	Limit int

	mu   sync.Mutex
	seen []Notification
}

// Notify implements [Notifier].
func (r *Recorder) Notify(_ context.Context, message string, level Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, Notification{Message: message, Level: level})
	if r.Limit > 0 && len(r.seen) > r.Limit {
		r.seen = append(r.seen[:0], r.seen[len(r.seen)-r.Limit:]...)
	}
}

// Drain returns the recorded notifications and clears the recorder.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.seen
	r.seen = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// All returns a copy of the recorded notifications in arrival order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.seen))
	copy(out, r.seen)
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) == 0 {
		return Notification{}, false
	}
	return r.seen[len(r.seen)-1], true
}

// Reset clears the recorder.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = nil
}

// Tee delivers every notification to each of ns in order.
func Tee(ns ...Notifier) Notifier {
	return Func(func(ctx context.Context, message string, level Level) {
		for _, n := range ns {
			n.Notify(ctx, message, level)
		}
	})
}
