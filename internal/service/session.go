package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avolkov/authgate/internal/storage"
	"github.com/avolkov/authgate/internal/util"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrStaleRefreshToken  = errors.New("stale or unknown refresh token")
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")
	ErrSessionStart       = errors.New("failed to start session")
	ErrCleanup            = errors.New("session cleanup failed")
)

// SessionManager is the facade over the session lifecycle: starting a
// session, rotating its refresh token and reclaiming dead sessions.
type SessionManager struct {
	starter *SessionStarter
	rotator *TokenRotator
	cleaner *SessionCleaner
}

func NewSessionManager(store storage.SessionStore, cfg *util.SessionConfig, log *zap.SugaredLogger) *SessionManager {
	return &SessionManager{
		starter: NewSessionStarter(store, log),
		rotator: NewTokenRotator(store, log),
		cleaner: NewSessionCleaner(store, cfg, log),
	}
}

// GenerateSessionNumber builds the opaque correlation value for a new
// session from the user id, the current instant and a random UUID. The raw
// value travels inside the refresh credential; only its hash is stored.
func (sm *SessionManager) GenerateSessionNumber(userID int64) string {
	return fmt.Sprintf("%d-%d-%s", userID, time.Now().UnixMilli(), uuid.NewString())
}

func (sm *SessionManager) StartSession(ctx context.Context, params StartSessionParams) (int64, error) {
	return sm.starter.StartSession(ctx, params)
}

func (sm *SessionManager) RotateToken(ctx context.Context, sessionNumber, oldToken, newToken string) (int64, error) {
	return sm.rotator.Rotate(ctx, sessionNumber, oldToken, newToken)
}

func (sm *SessionManager) EndSession(ctx context.Context, sessionNumber string) (int64, error) {
	return sm.cleaner.EndSession(ctx, sessionNumber)
}

func (sm *SessionManager) SweepIdle(ctx context.Context) ([]int64, error) {
	return sm.cleaner.SweepIdle(ctx)
}

func (sm *SessionManager) SweepExpired(ctx context.Context) ([]int64, error) {
	return sm.cleaner.SweepExpired(ctx)
}
