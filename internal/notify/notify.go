// Package notify carries user-facing notices (the toast surface of the UI).
// Operations never fail silently: anything the user must know about is
// pushed through a Notifier and surfaced by the API.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notifier interface {
	Notify(level Level, message string)
}

type Notice struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recorder keeps the most recent notices in a ring so the client can poll
// them, and mirrors everything to the log.
type Recorder struct {
	mu      sync.Mutex
	log     *zap.Logger
	entries []Notice
	limit   int
}

func NewRecorder(log *zap.Logger, limit int) *Recorder {
	if limit <= 0 {
		limit = 50
	}
	return &Recorder{log: log, limit: limit}
}

func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	r.entries = append(r.entries, Notice{Level: level, Message: message, CreatedAt: time.Now()})
	if len(r.entries) > r.limit {
		r.entries = r.entries[len(r.entries)-r.limit:]
	}
	r.mu.Unlock()

	if r.log == nil {
		return
	}
	switch level {
	case LevelError:
		r.log.Error(message)
	case LevelWarning:
		r.log.Warn(message)
	default:
		r.log.Info(message)
	}
}

// Recent returns up to n notices, newest last.
func (r *Recorder) Recent(n int) []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > len(r.entries) {
		n = len(r.entries)
	}
	out := make([]Notice, n)
	copy(out, r.entries[len(r.entries)-n:])
	return out
}

// Nop discards every notice. Used by tests that do not assert on notices.
type Nop struct{}

func (Nop) Notify(Level, string) {}
