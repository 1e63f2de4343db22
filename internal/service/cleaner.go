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

// SessionCleaner ends single sessions and batch-reclaims idle and expired
// ones. Sweeps are idempotent: a second run right after the first deletes
// nothing.
type SessionCleaner struct {
	store     storage.SessionStore
	idleAfter time.Duration
	log       *zap.SugaredLogger
}

func NewSessionCleaner(store storage.SessionStore, cfg *util.SessionConfig, log *zap.SugaredLogger) *SessionCleaner {
	return &SessionCleaner{
		store:     store,
		idleAfter: cfg.IdleAfter,
		log:       log,
	}
}

// EndSession deletes the session matching the session number. An absent
// session is treated as already ended.
func (c *SessionCleaner) EndSession(ctx context.Context, sessionNumber string) (int64, error) {
	id, err := c.store.EndSession(ctx, util.HashSHA256(sessionNumber))
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %w", ErrCleanup, err)
	}
	c.log.Infow("session ended", "sessionID", id)
	return id, nil
}

// SweepIdle deletes non-persistent sessions unused for longer than the idle
// threshold and returns their ids.
func (c *SessionCleaner) SweepIdle(ctx context.Context) ([]int64, error) {
	cutoff := time.Now().UTC().Add(-c.idleAfter)
	deleted, err := c.store.SweepIdleSessions(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCleanup, err)
	}
	if len(deleted) > 0 {
		c.log.Infow("idle sessions swept", "sessionIDs", deleted)
	}
	return deleted, nil
}

// SweepExpired deletes persistent sessions past their absolute expiry and
// returns their ids.
func (c *SessionCleaner) SweepExpired(ctx context.Context) ([]int64, error) {
	deleted, err := c.store.SweepExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCleanup, err)
	}
	if len(deleted) > 0 {
		c.log.Infow("expired sessions swept", "sessionIDs", deleted)
	}
	return deleted, nil
}
