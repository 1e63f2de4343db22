package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avolkov/authgate/internal/models"
	"github.com/avolkov/authgate/internal/storage/memory"
)

func TestRegisterAndVerify(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(memory.NewUserStore(), zap.NewNop().Sugar())

	userID, err := auth.Register(ctx, models.RegisterRequest{
		Email:    "ada@example.com",
		Username: "ada",
		Password: "correct horse",
	})
	require.NoError(t, err)
	require.NotZero(t, userID)

	// Sign in by email and by username.
	user, err := auth.VerifyCredentials(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)

	user, err = auth.VerifyCredentials(ctx, "ada", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)

	// Passwords are stored hashed.
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	role, err := auth.RoleName(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRoleName, role)
}

func TestVerifyCredentialsFailures(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(memory.NewUserStore(), zap.NewNop().Sugar())

	_, err := auth.Register(ctx, models.RegisterRequest{
		Email:    "ada@example.com",
		Username: "ada",
		Password: "correct horse",
	})
	require.NoError(t, err)

	// Unknown user and wrong password produce the same error.
	_, err = auth.VerifyCredentials(ctx, "nobody", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.VerifyCredentials(ctx, "ada", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(memory.NewUserStore(), zap.NewNop().Sugar())

	req := models.RegisterRequest{
		Email:    "ada@example.com",
		Username: "ada",
		Password: "correct horse",
	}
	_, err := auth.Register(ctx, req)
	require.NoError(t, err)

	_, err = auth.Register(ctx, req)
	require.ErrorIs(t, err, ErrUserExists)
}

func TestMaskIdentifier(t *testing.T) {
	assert.Equal(t, "ab***@example.com", MaskIdentifier("abcdef@example.com"))
	assert.Equal(t, "a***@example.com", MaskIdentifier("a@example.com"))
	assert.Equal(t, "somebody***", MaskIdentifier("somebodyverylong"))
	assert.Equal(t, "ada***", MaskIdentifier("ada"))
}
