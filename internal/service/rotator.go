package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avolkov/authgate/internal/storage"
	"github.com/avolkov/authgate/internal/util"
)

// TokenRotator swaps a session's live refresh token for a new one on every
// refresh call and reacts to replayed tokens.
type TokenRotator struct {
	store storage.SessionStore
	log   *zap.SugaredLogger
}

func NewTokenRotator(store storage.SessionStore, log *zap.SugaredLogger) *TokenRotator {
	return &TokenRotator{store: store, log: log}
}

// Rotate runs one rotation transaction and maps storage outcomes onto the
// service error kinds. A replayed token means the credential pair has leaked:
// on detection every session of the owning user is revoked before the error
// is returned.
func (r *TokenRotator) Rotate(ctx context.Context, sessionNumber, oldToken, newToken string) (int64, error) {
	sessionID, err := r.store.RotateTokenTx(ctx, storage.RotateToken{
		SessionHash:  util.HashSHA256(sessionNumber),
		OldTokenHash: util.HashSHA256(oldToken),
		NewTokenHash: util.HashSHA256(newToken),
		Now:          time.Now().UTC(),
	})
	if err != nil {
		return 0, r.mapRotationError(ctx, err)
	}

	r.log.Debugw("refresh token rotated", "sessionID", sessionID)
	return sessionID, nil
}

func (r *TokenRotator) mapRotationError(ctx context.Context, err error) error {
	var reuse *storage.TokenReuseError
	switch {
	case errors.As(err, &reuse):
		r.log.Warnw("refresh token reuse detected, revoking all user sessions",
			"userID", reuse.UserID, "sessionID", reuse.SessionID)
		if deleted, delErr := r.store.DeleteUserSessions(ctx, reuse.UserID); delErr != nil {
			r.log.Errorw("failed to revoke user sessions after reuse",
				"userID", reuse.UserID, "error", delErr)
		} else {
			r.log.Infow("revoked user sessions after reuse",
				"userID", reuse.UserID, "sessionIDs", deleted)
		}
		return fmt.Errorf("%w: %w", ErrTokenReuseDetected, err)
	case errors.Is(err, storage.ErrSessionNotFound):
		return fmt.Errorf("%w: %w", ErrSessionNotFound, err)
	case errors.Is(err, storage.ErrTokenNotFound):
		return fmt.Errorf("%w: %w", ErrStaleRefreshToken, err)
	default:
		r.log.Errorw("rotation failed", "error", err)
		return fmt.Errorf("rotate token: %w", err)
	}
}
