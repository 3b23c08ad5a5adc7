package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind classifies a notification for presentation
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// Notifier receives user-facing messages after cart mutations
type Notifier interface {
	Notify(kind Kind, message string)
}

// Notification is a single recorded message
type Notification struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// LogSink writes notifications to a structured logger
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a notifier backed by zap
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(kind Kind, message string) {
	if kind == Error {
		s.logger.Warn("Notification", zap.String("kind", string(kind)), zap.String("message", message))
		return
	}
	s.logger.Info("Notification", zap.String("kind", string(kind)), zap.String("message", message))
}

// Recorder buffers notifications until they are drained
type Recorder struct {
	mu      sync.Mutex
	pending []Notification
	now     func() time.Time
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

func (r *Recorder) Notify(kind Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, Notification{Kind: kind, Message: message, Timestamp: r.now().UTC()})
}

// Drain returns buffered notifications in order and resets the buffer
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	if out == nil {
		return []Notification{}
	}
	return out
}

// Multi fans a notification out to every sink
type Multi []Notifier

func (m Multi) Notify(kind Kind, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(kind, message)
		}
	}
}
