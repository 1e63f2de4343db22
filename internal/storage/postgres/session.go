package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/authgate/internal/models"
	"github.com/avolkov/authgate/internal/storage"
)

type SessionRepository struct {
	db storage.DBTX
}

func NewSessionRepository(db storage.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) InsertSession(ctx context.Context, session models.Session) (int64, error) {
	query := `INSERT INTO user_sessions (user_id, session_hash, created_at, expires_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING session_id`
	var id int64
	err := r.db.QueryRowContext(
		ctx,
		query,
		session.UserID,
		session.SessionHash,
		session.CreatedAt,
		session.ExpiresAt,
		session.LastUsedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert session: %w", storage.ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}
	return id, nil
}

// TouchSession bumps last_used_at for the session matching the hash and
// returns its id and owner.
func (r *SessionRepository) TouchSession(ctx context.Context, sessionHash string, now time.Time) (sessionID, userID int64, err error) {
	query := `UPDATE user_sessions SET last_used_at = $2 WHERE session_hash = $1 RETURNING session_id, user_id`
	err = r.db.QueryRowContext(ctx, query, sessionHash, now).Scan(&sessionID, &userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, storage.ErrSessionNotFound
		}
		return 0, 0, fmt.Errorf("failed to touch session: %w", err)
	}
	return sessionID, userID, nil
}

func (r *SessionRepository) DeleteSessionByHash(ctx context.Context, sessionHash string) (int64, error) {
	query := `DELETE FROM user_sessions WHERE session_hash = $1 RETURNING session_id`
	var id int64
	err := r.db.QueryRowContext(ctx, query, sessionHash).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrSessionNotFound
		}
		return 0, fmt.Errorf("failed to delete session: %w", err)
	}
	return id, nil
}

// DeleteIdleSessions removes non-persistent sessions last used before cutoff.
func (r *SessionRepository) DeleteIdleSessions(ctx context.Context, cutoff time.Time) ([]int64, error) {
	query := `DELETE FROM user_sessions WHERE expires_at IS NULL AND last_used_at < $1 RETURNING session_id`
	return r.deleteReturningIDs(ctx, query, cutoff)
}

// DeleteExpiredSessions removes persistent sessions past their expiry.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) ([]int64, error) {
	query := `DELETE FROM user_sessions WHERE expires_at IS NOT NULL AND expires_at <= $1 RETURNING session_id`
	return r.deleteReturningIDs(ctx, query, now)
}

func (r *SessionRepository) DeleteSessionsByUser(ctx context.Context, userID int64) ([]int64, error) {
	query := `DELETE FROM user_sessions WHERE user_id = $1 RETURNING session_id`
	return r.deleteReturningIDs(ctx, query, userID)
}

func (r *SessionRepository) deleteReturningIDs(ctx context.Context, query string, arg any) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to delete sessions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deleted session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading deleted session ids: %w", err)
	}
	return ids, nil
}
