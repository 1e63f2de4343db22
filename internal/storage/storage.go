package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/authgate/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTokenNotFound   = errors.New("refresh token not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrRoleNotFound    = errors.New("role not found")
	ErrDuplicate       = errors.New("unique constraint violation")
)

// TokenReuseError reports a rotation attempt with a refresh token that was
// already rotated out. It carries the owning user so callers can revoke every
// session of that user.
type TokenReuseError struct {
	UserID    int64
	SessionID int64
}

func (e *TokenReuseError) Error() string {
	return fmt.Sprintf("refresh token already used (session %d, user %d)", e.SessionID, e.UserID)
}

// DBTX is satisfied by both *sql.DB and *sql.Tx, so a repository can run
// standalone or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// StartSession carries the hashed material for creating a session together
// with its first refresh token.
type StartSession struct {
	UserID      int64
	SessionHash string
	TokenHash   string
	Now         time.Time
	ExpiresAt   *time.Time
}

// RotateToken carries the hashed material for one rotation call.
type RotateToken struct {
	SessionHash  string
	OldTokenHash string
	NewTokenHash string
	Now          time.Time
}

// SessionStore is the persistence surface of the session lifecycle. Every
// mutating method is atomic: either all of its writes land or none do.
type SessionStore interface {
	// StartSessionTx inserts the session row and its first unused token row
	// in one transaction and returns the new session id.
	StartSessionTx(ctx context.Context, params StartSession) (int64, error)

	// RotateTokenTx runs the rotation protocol in one transaction: bump
	// last_used_at, verify and invalidate the old token, insert the new one.
	// Fails with ErrSessionNotFound, ErrTokenNotFound or *TokenReuseError.
	RotateTokenTx(ctx context.Context, params RotateToken) (int64, error)

	// EndSession deletes the session matching the hash and, through the
	// cascade, its token rows. Returns the deleted id or ErrSessionNotFound.
	EndSession(ctx context.Context, sessionHash string) (int64, error)

	// SweepIdleSessions deletes non-persistent sessions last used before
	// cutoff and returns the deleted ids.
	SweepIdleSessions(ctx context.Context, cutoff time.Time) ([]int64, error)

	// SweepExpiredSessions deletes persistent sessions whose expiry is at or
	// before now and returns the deleted ids.
	SweepExpiredSessions(ctx context.Context, now time.Time) ([]int64, error)

	// DeleteUserSessions deletes every session of the user and returns the
	// deleted ids.
	DeleteUserSessions(ctx context.Context, userID int64) ([]int64, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (int64, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetRoleByName(ctx context.Context, name string) (*models.Role, error)
	GetRoleByID(ctx context.Context, id int64) (*models.Role, error)
}

// TokenBlacklist holds revoked access-token ids until their natural expiry.
type TokenBlacklist interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}
