package memory

import (
	"context"
	"sync"
	"time"

	"github.com/avolkov/authgate/internal/models"
	"github.com/avolkov/authgate/internal/storage"
)

// SessionStore is a mutex-guarded implementation of storage.SessionStore with
// the same semantics as the postgres transactions. The lock is the
// transaction: a mutating call either applies all of its writes or none.
type SessionStore struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*models.Session       // by session id
	byHash   map[string]int64                // session_hash -> session id
	tokens   map[string]*models.SessionToken // token_hash -> token row
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		nextID:   1,
		sessions: make(map[int64]*models.Session),
		byHash:   make(map[string]int64),
		tokens:   make(map[string]*models.SessionToken),
	}
}

func (m *SessionStore) StartSessionTx(_ context.Context, params storage.StartSession) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byHash[params.SessionHash]; exists {
		return 0, storage.ErrDuplicate
	}
	if _, exists := m.tokens[params.TokenHash]; exists {
		return 0, storage.ErrDuplicate
	}

	id := m.nextID
	m.nextID++

	m.sessions[id] = &models.Session{
		ID:          id,
		UserID:      params.UserID,
		SessionHash: params.SessionHash,
		CreatedAt:   params.Now,
		ExpiresAt:   params.ExpiresAt,
		LastUsedAt:  params.Now,
	}
	m.byHash[params.SessionHash] = id
	m.tokens[params.TokenHash] = &models.SessionToken{
		ID:        id,
		SessionID: id,
		TokenHash: params.TokenHash,
		CreatedAt: params.Now,
		ExpiresAt: params.ExpiresAt,
	}
	return id, nil
}

func (m *SessionStore) RotateTokenTx(_ context.Context, params storage.RotateToken) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessionID, ok := m.byHash[params.SessionHash]
	if !ok {
		return 0, storage.ErrSessionNotFound
	}
	session := m.sessions[sessionID]

	oldToken, ok := m.tokens[params.OldTokenHash]
	if !ok {
		return 0, storage.ErrTokenNotFound
	}
	if oldToken.IsUsed {
		return 0, &storage.TokenReuseError{UserID: session.UserID, SessionID: sessionID}
	}

	if existing, ok := m.tokens[params.NewTokenHash]; ok {
		if existing.IsUsed {
			return 0, &storage.TokenReuseError{UserID: session.UserID, SessionID: sessionID}
		}
		return 0, storage.ErrDuplicate
	}

	// All checks passed; apply every write.
	session.LastUsedAt = params.Now
	oldToken.IsUsed = true
	m.tokens[params.NewTokenHash] = &models.SessionToken{
		SessionID: sessionID,
		TokenHash: params.NewTokenHash,
		CreatedAt: params.Now,
	}
	return sessionID, nil
}

func (m *SessionStore) EndSession(_ context.Context, sessionHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHash[sessionHash]
	if !ok {
		return 0, storage.ErrSessionNotFound
	}
	m.removeSessionLocked(id)
	return id, nil
}

func (m *SessionStore) SweepIdleSessions(_ context.Context, cutoff time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted []int64
	for id, s := range m.sessions {
		if s.ExpiresAt == nil && s.LastUsedAt.Before(cutoff) {
			deleted = append(deleted, id)
		}
	}
	for _, id := range deleted {
		m.removeSessionLocked(id)
	}
	return deleted, nil
}

func (m *SessionStore) SweepExpiredSessions(_ context.Context, now time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted []int64
	for id, s := range m.sessions {
		if s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
			deleted = append(deleted, id)
		}
	}
	for _, id := range deleted {
		m.removeSessionLocked(id)
	}
	return deleted, nil
}

func (m *SessionStore) DeleteUserSessions(_ context.Context, userID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted []int64
	for id, s := range m.sessions {
		if s.UserID == userID {
			deleted = append(deleted, id)
		}
	}
	for _, id := range deleted {
		m.removeSessionLocked(id)
	}
	return deleted, nil
}

// TokenByHash exposes a stored token row for assertions in tests.
func (m *SessionStore) TokenByHash(tokenHash string) (models.SessionToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[tokenHash]
	if !ok {
		return models.SessionToken{}, false
	}
	return *t, true
}

// SessionByID exposes a stored session for assertions in tests.
func (m *SessionStore) SessionByID(id int64) (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return models.Session{}, false
	}
	return *s, true
}

// removeSessionLocked deletes a session and its token rows, mirroring the
// ON DELETE CASCADE of the relational schema.
func (m *SessionStore) removeSessionLocked(id int64) {
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	delete(m.byHash, s.SessionHash)
	delete(m.sessions, id)
	for hash, t := range m.tokens {
		if t.SessionID == id {
			delete(m.tokens, hash)
		}
	}
}
