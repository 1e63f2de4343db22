package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avolkov/authgate/internal/storage"
	"github.com/avolkov/authgate/internal/util"
)

// SessionStarter creates a session and its first refresh token atomically.
type SessionStarter struct {
	store storage.SessionStore
	log   *zap.SugaredLogger
}

func NewSessionStarter(store storage.SessionStore, log *zap.SugaredLogger) *SessionStarter {
	return &SessionStarter{store: store, log: log}
}

type StartSessionParams struct {
	SessionNumber string
	UserID        int64
	RefreshToken  string
	// ExpiresAt is nil for a session-scoped login and an absolute instant
	// for a persistent one.
	ExpiresAt *time.Time
}

// StartSession hashes the session number and refresh token and inserts both
// rows in one transaction. Neither raw value leaves this call towards
// storage.
func (s *SessionStarter) StartSession(ctx context.Context, params StartSessionParams) (int64, error) {
	now := time.Now().UTC()

	sessionID, err := s.store.StartSessionTx(ctx, storage.StartSession{
		UserID:      params.UserID,
		SessionHash: util.HashSHA256(params.SessionNumber),
		TokenHash:   util.HashSHA256(params.RefreshToken),
		Now:         now,
		ExpiresAt:   params.ExpiresAt,
	})
	if err != nil {
		s.log.Errorw("failed to start session", "userID", params.UserID, "error", err)
		return 0, fmt.Errorf("%w: %w", ErrSessionStart, err)
	}

	s.log.Infow("session started", "sessionID", sessionID, "userID", params.UserID,
		"persistent", params.ExpiresAt != nil)
	return sessionID, nil
}
