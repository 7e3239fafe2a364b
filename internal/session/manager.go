package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aquasense/aquavoice/internal/conversation"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("session not found")

// Session is one device connection and its conversation. Conversation is
// the live orchestrator shared across lookups; the metadata fields are
// cloned on read.
type Session struct {
	ID             string    `json:"session_id"`
	Locale         string    `json:"locale"`
	VoiceHint      string    `json:"voice_hint,omitempty"`
	Status         Status    `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`

	Conversation *conversation.Orchestrator `json:"-"`
}

// Factory builds the conversation orchestrator for a new session.
type Factory func(sessionID, locale, voiceHint string) *conversation.Orchestrator

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	factory           Factory
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration, factory Factory) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 2 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		factory:           factory,
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create(locale, voiceHint string) *Session {
	now := time.Now().UTC()
	id := uuid.NewString()
	s := &Session{
		ID:             id,
		Locale:         locale,
		VoiceHint:      voiceHint,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if m.factory != nil {
		s.Conversation = m.factory(id, locale, voiceHint)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return clone(s)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	s.Status = StatusEnded
	s.LastActivityAt = time.Now().UTC()
	out := clone(s)
	m.mu.Unlock()

	if out.Conversation != nil {
		out.Conversation.CancelTurn()
	}
	return out, nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for _, s := range m.sessions {
		if s.Status != StatusActive {
			// Ended sessions stay queryable for one more timeout window,
			// then get dropped.
			if now.Sub(s.LastActivityAt) >= m.inactivityTimeout {
				delete(m.sessions, s.ID)
			}
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		s.Status = StatusEnded
		s.LastActivityAt = now
		expired = append(expired, clone(s))
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, s := range expired {
		if s.Conversation != nil {
			s.Conversation.CancelTurn()
		}
		if hook != nil {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
