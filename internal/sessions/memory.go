package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/riverbend-labs/canvas-agent/pkg/models"
)

// MemoryStore is an in-memory Store for tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	byKey    map[string]string
	events   map[string][]*models.SessionEvent
	seq      map[string]int64
	getOrSF  singleflight.Group
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*models.Session{},
		byKey:    map[string]string{},
		events:   map[string][]*models.SessionEvent{},
		seq:      map[string]int64{},
	}
}

func (m *MemoryStore) GetOrCreate(_ context.Context, key, agentID string) (*models.Session, error) {
	v, err, _ := m.getOrSF.Do(key, func() (any, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if id, ok := m.byKey[key]; ok {
			return cloneSession(m.sessions[id]), nil
		}
		now := time.Now()
		s := &models.Session{
			ID:        uuid.NewString(),
			Key:       key,
			AgentID:   agentID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		m.sessions[s.ID] = cloneSession(s)
		m.byKey[key] = s.ID
		return cloneSession(s), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Session), nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) GetByKey(_ context.Context, key string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(m.sessions[id]), nil
}

func (m *MemoryStore) List(_ context.Context, agentID string, opts ListOptions) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Session, 0)
	for _, s := range m.sessions {
		if agentID != "" && s.AgentID != agentID {
			continue
		}
		out = append(out, cloneSession(s))
	}
	start := opts.Offset
	if start < 0 || start > len(out) {
		start = len(out)
	}
	end := len(out)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return out[start:end], nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	delete(m.byKey, s.Key)
	delete(m.events, id)
	delete(m.seq, id)
	return nil
}

func (m *MemoryStore) AppendEvent(_ context.Context, sessionID string, part models.ConversationPart) (*models.SessionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	m.seq[sessionID]++
	ev := &models.SessionEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Part:      part,
		Seq:       m.seq[sessionID],
		CreatedAt: time.Now(),
	}
	m.events[sessionID] = append(m.events[sessionID], ev)
	s.UpdatedAt = ev.CreatedAt
	clone := *ev
	return &clone, nil
}

func (m *MemoryStore) GetEvents(_ context.Context, sessionID string, limit int) ([]*models.SessionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := m.events[sessionID]
	start := 0
	if limit > 0 && len(events) > limit {
		start = len(events) - limit
	}
	out := make([]*models.SessionEvent, 0, len(events)-start)
	for _, ev := range events[start:] {
		clone := *ev
		out = append(out, &clone)
	}
	return out, nil
}

func (m *MemoryStore) TruncateEvents(_ context.Context, sessionID string, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return 0, ErrNotFound
	}
	events := m.events[sessionID]
	if keep < 0 || len(events) <= keep {
		return 0, nil
	}
	removed := len(events) - keep
	m.events[sessionID] = events[removed:]
	return removed, nil
}

func (m *MemoryStore) Touch(_ context.Context, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.UpdatedAt = at
	return nil
}

func cloneSession(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Metadata != nil {
		clone.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}
