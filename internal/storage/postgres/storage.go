package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/avolkov/authgate/internal/models"
	"github.com/avolkov/authgate/internal/storage"
)

const uniqueViolationCode = "23505"

// Storage bundles the repositories over one *sql.DB and implements the
// transactional session protocol. Repositories are rebuilt over a *sql.Tx
// inside each transactional method.
type Storage struct {
	db *sql.DB
	*UserRepository
	*RoleRepository
	*SessionRepository
	*TokenRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:                db,
		UserRepository:    NewUserRepository(db),
		RoleRepository:    NewRoleRepository(db),
		SessionRepository: NewSessionRepository(db),
		TokenRepository:   NewTokenRepository(db),
	}
}

// StartSessionTx inserts the session row and its first refresh-token row in
// one transaction. A failure of either insert rolls back both.
func (s *Storage) StartSessionTx(ctx context.Context, params storage.StartSession) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	sessionRepoTx := NewSessionRepository(tx)
	tokenRepoTx := NewTokenRepository(tx)

	sessionID, err := sessionRepoTx.InsertSession(ctx, models.Session{
		UserID:      params.UserID,
		SessionHash: params.SessionHash,
		CreatedAt:   params.Now,
		ExpiresAt:   params.ExpiresAt,
		LastUsedAt:  params.Now,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create session in tx: %w", err)
	}

	if _, err := tokenRepoTx.InsertToken(ctx, models.SessionToken{
		SessionID: sessionID,
		TokenHash: params.TokenHash,
		CreatedAt: params.Now,
		ExpiresAt: params.ExpiresAt,
	}); err != nil {
		return 0, fmt.Errorf("failed to store first token in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return sessionID, nil
}

// RotateTokenTx runs one rotation as a transaction:
//  1. resolve the session by hash and bump last_used_at;
//  2. load the old-token row; a missing row is a stale token, a row already
//     marked used is reuse and aborts with *storage.TokenReuseError;
//  3. mark the old row used;
//  4. duplicate-hash guard on the new token, then insert it unused.
//
// Any failure rolls the whole transaction back, so last_used_at is only ever
// bumped by a successful rotation.
func (s *Storage) RotateTokenTx(ctx context.Context, params storage.RotateToken) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	sessionRepoTx := NewSessionRepository(tx)
	tokenRepoTx := NewTokenRepository(tx)

	sessionID, userID, err := sessionRepoTx.TouchSession(ctx, params.SessionHash, params.Now)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve session in tx: %w", err)
	}

	oldToken, err := tokenRepoTx.GetTokenByHash(ctx, params.OldTokenHash)
	if err != nil {
		return 0, fmt.Errorf("failed to look up old token in tx: %w", err)
	}
	if oldToken.IsUsed {
		return 0, &storage.TokenReuseError{UserID: userID, SessionID: sessionID}
	}

	if err := tokenRepoTx.MarkTokenUsed(ctx, oldToken.ID); err != nil {
		return 0, fmt.Errorf("failed to invalidate old token in tx: %w", err)
	}

	// A fresh random token should never collide; the unique index backs this
	// check up at insert time.
	if existing, err := tokenRepoTx.GetTokenByHash(ctx, params.NewTokenHash); err == nil {
		if existing.IsUsed {
			return 0, &storage.TokenReuseError{UserID: userID, SessionID: sessionID}
		}
		return 0, fmt.Errorf("new token hash already stored: %w", storage.ErrDuplicate)
	} else if !errors.Is(err, storage.ErrTokenNotFound) {
		return 0, fmt.Errorf("failed to check new token in tx: %w", err)
	}

	if _, err := tokenRepoTx.InsertToken(ctx, models.SessionToken{
		SessionID: sessionID,
		TokenHash: params.NewTokenHash,
		CreatedAt: params.Now,
	}); err != nil {
		return 0, fmt.Errorf("failed to store new token in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return sessionID, nil
}

// EndSession deletes the session matching the hash; token rows go with it
// through the cascade declared in the schema.
func (s *Storage) EndSession(ctx context.Context, sessionHash string) (int64, error) {
	return s.DeleteSessionByHash(ctx, sessionHash)
}

func (s *Storage) SweepIdleSessions(ctx context.Context, cutoff time.Time) ([]int64, error) {
	return s.DeleteIdleSessions(ctx, cutoff)
}

func (s *Storage) SweepExpiredSessions(ctx context.Context, now time.Time) ([]int64, error) {
	return s.DeleteExpiredSessions(ctx, now)
}

func (s *Storage) DeleteUserSessions(ctx context.Context, userID int64) ([]int64, error) {
	return s.DeleteSessionsByUser(ctx, userID)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}
