package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avolkov/authgate/internal/models"
	"github.com/avolkov/authgate/internal/storage"
)

type UserRepository struct {
	db storage.DBTX
}

func NewUserRepository(db storage.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user models.User) (int64, error) {
	query := `INSERT INTO users (role_id, email, username, password_hash)
		VALUES ($1, $2, $3, $4) RETURNING user_id`
	var id int64
	err := r.db.QueryRowContext(ctx, query, user.RoleID, user.Email, user.Username, user.PasswordHash).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("create user: %w", storage.ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// GetUserByIdentifier resolves a user by email or username in one query.
func (r *UserRepository) GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	var user models.User
	query := `SELECT user_id, role_id, email, username, password_hash
		FROM users WHERE email = $1 OR username = $1`
	err := r.db.QueryRowContext(ctx, query, identifier).Scan(
		&user.ID,
		&user.RoleID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by identifier: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := `SELECT user_id, role_id, email, username, password_hash FROM users WHERE user_id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.RoleID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &user, nil
}
