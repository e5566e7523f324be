package sessions

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrLockTimeout is returned when acquiring a lock times out.
	ErrLockTimeout = errors.New("sessions: lock acquisition timeout")
)

// DefaultLockTimeout bounds how long Lock waits for a busy session.
const DefaultLockTimeout = 5 * time.Second

const lockPollInterval = 10 * time.Millisecond

type sessionMutex struct {
	mu     sync.Mutex
	locked bool
}

// SessionLocker gives each session id a single-writer lock backed by
// sync.Map, enforcing spec §5's "single-threaded cooperative per session"
// rule without needing a database round trip for single-process deployments.
type SessionLocker struct {
	locks   sync.Map // map[string]*sessionMutex
	timeout time.Duration
}

// NewSessionLocker creates a SessionLocker. timeout <= 0 uses DefaultLockTimeout.
func NewSessionLocker(timeout time.Duration) *SessionLocker {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &SessionLocker{timeout: timeout}
}

func (s *SessionLocker) getOrCreateMutex(sessionID string) *sessionMutex {
	if m, ok := s.locks.Load(sessionID); ok {
		return m.(*sessionMutex)
	}
	actual, _ := s.locks.LoadOrStore(sessionID, &sessionMutex{})
	return actual.(*sessionMutex)
}

// Lock blocks until the session's lock is free or the locker's timeout elapses.
func (s *SessionLocker) Lock(ctx context.Context, sessionID string) error {
	m := s.getOrCreateMutex(sessionID)
	deadline := time.Now().Add(s.timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		m.mu.Lock()
		if !m.locked {
			m.locked = true
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()

		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// Unlock releases the session's lock. Safe to call when not held.
func (s *SessionLocker) Unlock(sessionID string) {
	if m, ok := s.locks.Load(sessionID); ok {
		mu := m.(*sessionMutex)
		mu.mu.Lock()
		mu.locked = false
		mu.mu.Unlock()
	}
}

// WithLock runs fn while holding sessionID's write lock, releasing it
// afterward regardless of error. This is the shape the Runner uses to
// serialize turns for a given session (spec §5).
func (s *SessionLocker) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	if err := s.Lock(ctx, sessionID); err != nil {
		return err
	}
	defer s.Unlock(sessionID)
	return fn(ctx)
}
