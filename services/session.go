package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github/itish2003/studybuddy/store"

	"github.com/google/uuid"
)

// Session is the explicit per-user context passed into every pipeline call:
// the active index and the to-do list live here instead of in globals.
type Session struct {
	ID        string
	CreatedAt time.Time
	Index     VectorIndex
	Tasks     *TodoList

	// guarded by SessionManager.mu
	lastUsed time.Time
	pinned   bool
}

// IndexFactory creates the empty index for a new session.
type IndexFactory func() VectorIndex

// SessionManager owns all live sessions.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	newIndex IndexFactory
	history  store.HistoryStore
	now      func() time.Time
}

func NewSessionManager(newIndex IndexFactory, history store.HistoryStore) *SessionManager {
	if newIndex == nil {
		newIndex = func() VectorIndex { return NewMemoryIndex() }
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		newIndex: newIndex,
		history:  history,
		now:      time.Now,
	}
}

// Resolve returns the session for id, creating one when id is empty or
// unknown (e.g., the server restarted). created reports which happened.
func (m *SessionManager) Resolve(id string) (session *Session, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if id != "" {
		if s, ok := m.sessions[id]; ok {
			s.lastUsed = now
			return s, false
		}
	}
	if id == "" {
		id = uuid.New().String()
	}
	s := &Session{
		ID:        id,
		CreatedAt: now.UTC(),
		Index:     m.newIndex(),
		Tasks:     NewTodoList(m.history),
		lastUsed:  now,
	}
	m.sessions[id] = s
	log.Printf("SESSION: Created session %s", id)
	return s, true
}

// Pin resolves id and exempts it from idle expiry.
func (m *SessionManager) Pin(id string) *Session {
	s, _ := m.Resolve(id)
	m.mu.Lock()
	s.pinned = true
	m.mu.Unlock()
	return s
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ExpireIdle ends every unpinned session not resolved within ttl and
// returns how many were ended.
func (m *SessionManager) ExpireIdle(ctx context.Context, ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)
	m.mu.Lock()
	var idle []string
	for id, s := range m.sessions {
		if !s.pinned && s.lastUsed.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	for _, id := range idle {
		m.End(ctx, id)
	}
	if len(idle) > 0 {
		log.Printf("SESSION: Expired %d idle sessions", len(idle))
	}
	return len(idle)
}

// RunExpiry calls ExpireIdle every ttl/4 until ctx is done. A ttl <= 0
// returns immediately.
func (m *SessionManager) RunExpiry(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(max(ttl/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ExpireIdle(ctx, ttl)
		}
	}
}

// End discards the session and its index.
func (m *SessionManager) End(ctx context.Context, id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	if err := s.Index.Drop(ctx); err != nil {
		log.Printf("SESSION WARN: dropping index of %s: %v", id, err)
	}
	log.Printf("SESSION: Ended session %s", id)
	return true
}

// Close ends every session.
func (m *SessionManager) Close(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.End(ctx, id)
	}
}
