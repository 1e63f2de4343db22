package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avolkov/authgate/internal/models"
	"github.com/avolkov/authgate/internal/storage"
)

type TokenRepository struct {
	db storage.DBTX
}

func NewTokenRepository(db storage.DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) InsertToken(ctx context.Context, token models.SessionToken) (int64, error) {
	query := `INSERT INTO session_tokens (session_id, token_hash, created_at, expires_at, is_used)
		VALUES ($1, $2, $3, $4, $5) RETURNING token_id`
	var id int64
	err := r.db.QueryRowContext(
		ctx,
		query,
		token.SessionID,
		token.TokenHash,
		token.CreatedAt,
		token.ExpiresAt,
		token.IsUsed,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert token: %w", storage.ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to insert token: %w", err)
	}
	return id, nil
}

func (r *TokenRepository) GetTokenByHash(ctx context.Context, tokenHash string) (*models.SessionToken, error) {
	var token models.SessionToken
	query := `SELECT token_id, session_id, token_hash, created_at, expires_at, is_used
		FROM session_tokens WHERE token_hash = $1`
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.SessionID,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.IsUsed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &token, nil
}

// MarkTokenUsed rotates the token out. The row keeps existing so a later
// presentation of the same token is recognisable as reuse.
func (r *TokenRepository) MarkTokenUsed(ctx context.Context, tokenID int64) error {
	query := `UPDATE session_tokens SET is_used = TRUE WHERE token_id = $1`
	res, err := r.db.ExecContext(ctx, query, tokenID)
	if err != nil {
		return fmt.Errorf("failed to mark token as used: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrTokenNotFound
	}
	return nil
}
