package session

import (
	"context"
	"sync"
	"time"

	"storefront/internal/cart"
	"storefront/internal/notify"

	"go.uber.org/zap"
)

// StoreFactory returns the line store backing one session's cart
type StoreFactory func(sessionID string) cart.LineStore

// Session is one shopper's cart together with the notifications raised by
// its mutations. A Session is only used between Acquire and Release.
type Session struct {
	ID       string
	Engine   *cart.Engine
	Recorder *notify.Recorder

	mu       sync.Mutex
	loaded   bool
	evicted  bool
	lastSeen time.Time
}

// Registry owns the live sessions and serializes access to each of them
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	stores  StoreFactory
	sink    notify.Notifier
	options []cart.Option
	logger  *zap.Logger
	now     func() time.Time
}

// NewRegistry creates an empty registry. Every engine it builds gets opts.
func NewRegistry(stores StoreFactory, logger *zap.Logger, opts ...cart.Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		stores:   stores,
		sink:     notify.NewLogSink(logger),
		options:  append([]cart.Option{cart.WithLogger(logger)}, opts...),
		logger:   logger,
		now:      time.Now,
	}
}

// Acquire returns the session locked for exclusive use, creating it and
// loading its persisted cart on first use. Callers must Release it.
func (r *Registry) Acquire(ctx context.Context, id string) (*Session, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s := r.lookup(id)
		s.mu.Lock()
		if s.evicted {
			s.mu.Unlock()
			continue
		}

		if !s.loaded {
			if err := s.Engine.Load(ctx); err != nil {
				r.logger.Warn("Could not load persisted cart, starting empty",
					zap.String("session_id", id),
					zap.Error(err),
				)
			} else {
				s.loaded = true
			}
		}
		return s, nil
	}
}

// Release marks the session as used and unlocks it
func (r *Registry) Release(s *Session) {
	s.lastSeen = r.now()
	s.mu.Unlock()
}

// Drop forgets a session. Its persisted lines are kept.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.mu.Lock()
		s.evicted = true
		s.mu.Unlock()
	}
}

// Len reports how many sessions are live
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than maxIdle and returns how many
// were removed. Sessions in use are skipped.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if s.lastSeen.Before(cutoff) {
			s.evicted = true
			delete(r.sessions, id)
			evicted++
		}
		s.mu.Unlock()
	}

	if evicted > 0 {
		r.logger.Debug("Evicted idle sessions", zap.Int("count", evicted), zap.Int("remaining", len(r.sessions)))
	}
	return evicted
}

// Run sweeps idle sessions every interval until ctx is cancelled
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(maxIdle)
		}
	}
}

func (r *Registry) lookup(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s
	}

	recorder := notify.NewRecorder()
	s := &Session{
		ID:       id,
		Engine:   cart.NewEngine(r.stores(id), notify.Multi{recorder, r.sink}, r.options...),
		Recorder: recorder,
		lastSeen: r.now(),
	}
	r.sessions[id] = s
	return s
}
