package memory

import (
	"context"
	"sync"

	"github.com/avolkov/authgate/internal/models"
	"github.com/avolkov/authgate/internal/storage"
)

// UserStore is an in-memory storage.UserStore used by tests and local runs.
// It is seeded with the default role.
type UserStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]models.User
	roles  map[int64]models.Role
}

func NewUserStore() *UserStore {
	return &UserStore{
		nextID: 1,
		users:  make(map[int64]models.User),
		roles: map[int64]models.Role{
			1: {ID: 1, Name: models.DefaultRoleName},
		},
	}
}

func (m *UserStore) CreateUser(_ context.Context, user models.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username || u.PasswordHash == user.PasswordHash {
			return 0, storage.ErrDuplicate
		}
	}

	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return user.ID, nil
}

func (m *UserStore) GetUserByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == identifier || u.Username == identifier {
			user := u
			return &user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *UserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &u, nil
}

func (m *UserStore) GetRoleByName(_ context.Context, name string) (*models.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.roles {
		if r.Name == name {
			role := r
			return &role, nil
		}
	}
	return nil, storage.ErrRoleNotFound
}

func (m *UserStore) GetRoleByID(_ context.Context, id int64) (*models.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.roles[id]
	if !ok {
		return nil, storage.ErrRoleNotFound
	}
	return &r, nil
}
