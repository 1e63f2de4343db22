package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/avolkov/authgate/internal/models"
	"github.com/avolkov/authgate/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
)

const bcryptCost = 10

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// AuthService verifies credentials and registers users. The session core
// never sees passwords; it only receives the verified user id.
type AuthService struct {
	users storage.UserStore
	log   *zap.SugaredLogger
}

func NewAuthService(users storage.UserStore, log *zap.SugaredLogger) *AuthService {
	return &AuthService{users: users, log: log}
}

// Register hashes the password and creates the user under the default role.
func (a *AuthService) Register(ctx context.Context, req models.RegisterRequest) (int64, error) {
	role, err := a.users.GetRoleByName(ctx, models.DefaultRoleName)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve default role: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := a.users.CreateUser(ctx, models.User{
		RoleID:       role.ID,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(passwordHash),
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return 0, ErrUserExists
		}
		return 0, fmt.Errorf("failed to register user: %w", err)
	}

	a.log.Infow("user registered", "userID", userID)
	return userID, nil
}

// VerifyCredentials resolves the user by email or username and compares the
// password. Lookup misses and password mismatches collapse into one error so
// the response does not reveal which part was wrong.
func (a *AuthService) VerifyCredentials(ctx context.Context, identifier, password string) (*models.User, error) {
	user, err := a.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			a.log.Infow("failed sign-in attempt", "identifier", MaskIdentifier(identifier))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		a.log.Infow("failed sign-in attempt", "identifier", MaskIdentifier(identifier))
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// UserByID loads a user for token re-issuance during refresh.
func (a *AuthService) UserByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := a.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return user, nil
}

// RoleName resolves the display name of the user's role for token claims.
func (a *AuthService) RoleName(ctx context.Context, user *models.User) (string, error) {
	role, err := a.users.GetRoleByID(ctx, user.RoleID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve role: %w", err)
	}
	return role.Name, nil
}

// MaskIdentifier hides most of an identifier before it reaches the logs:
// emails keep two leading characters and the host, usernames keep at most
// eight leading characters.
func MaskIdentifier(identifier string) string {
	if emailPattern.MatchString(identifier) {
		at := strings.LastIndex(identifier, "@")
		local := identifier[:at]
		if len(local) > 2 {
			local = local[:2]
		}
		return local + "***" + identifier[at:]
	}
	if len(identifier) > 8 {
		identifier = identifier[:8]
	}
	return identifier + "***"
}
