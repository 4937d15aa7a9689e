package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Manager owns the live sessions. Sessions not touched for ttl are
// dropped; a zero ttl keeps them until deleted.
type Manager struct {
	sessions     *cache.Cache
	systemPrompt string
}

// NewManager creates a Manager whose sessions start with systemPrompt.
func NewManager(systemPrompt string, ttl time.Duration) *Manager {
	cleanup := ttl / 2
	if ttl <= 0 {
		ttl = cache.NoExpiration
		cleanup = 0
	}
	return &Manager{
		sessions:     cache.New(ttl, cleanup),
		systemPrompt: systemPrompt,
	}
}

// Create starts a new session with a random ID.
func (m *Manager) Create() *Session {
	s := NewSession(uuid.NewString(), m.systemPrompt)
	m.sessions.SetDefault(s.ID, s)
	return s
}

// Get returns the session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, bool) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*Session)
	m.sessions.SetDefault(id, s)
	return s, true
}

// Delete ends a session. Deleting an unknown ID is a no-op.
func (m *Manager) Delete(id string) {
	m.sessions.Delete(id)
}

// Count is the number of live sessions.
func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}
