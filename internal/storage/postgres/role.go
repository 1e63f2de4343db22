package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avolkov/authgate/internal/models"
	"github.com/avolkov/authgate/internal/storage"
)

type RoleRepository struct {
	db storage.DBTX
}

func NewRoleRepository(db storage.DBTX) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	query := `SELECT role_id, role_name FROM roles WHERE role_name = $1`
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&role.ID, &role.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}
	return &role, nil
}

func (r *RoleRepository) GetRoleByID(ctx context.Context, id int64) (*models.Role, error) {
	var role models.Role
	query := `SELECT role_id, role_name FROM roles WHERE role_id = $1`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&role.ID, &role.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role by id: %w", err)
	}
	return &role, nil
}
