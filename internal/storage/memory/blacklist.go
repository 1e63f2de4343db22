package memory

import (
	"context"
	"sync"
	"time"
)

// TokenBlacklist is an in-memory revocation list keyed by access-token JTI.
// Entries expire lazily on read.
type TokenBlacklist struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewTokenBlacklist() *TokenBlacklist {
	return &TokenBlacklist{revoked: make(map[string]time.Time)}
}

func (m *TokenBlacklist) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.revoked[jti] = time.Now().Add(ttl)
	return nil
}

func (m *TokenBlacklist) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.RLock()
	until, ok := m.revoked[jti]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if time.Now().After(until) {
		m.mu.Lock()
		delete(m.revoked, jti)
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}
