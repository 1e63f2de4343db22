package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/authgate/internal/models"
	"github.com/avolkov/authgate/internal/storage/memory"
	"github.com/avolkov/authgate/internal/util"
)

func newTestTokenService() *TokenService {
	cfg := &util.TokenConfig{
		AccessSecret:  []byte("access-secret-for-tests"),
		RefreshSecret: []byte("refresh-secret-for-tests"),
		AccessTTL:     5 * time.Minute,
		RefreshTTL:    30 * 24 * time.Hour,
	}
	return NewTokenService(cfg, memory.NewTokenBlacklist())
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	ts := newTestTokenService()
	now := time.Now().UTC()

	token, err := ts.CreateRefreshToken(7, "7-123-abc", true, now)
	require.NoError(t, err)

	claims, err := ts.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "7-123-abc", claims.SessionNumber)
	assert.True(t, claims.Persistent)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)
}

func TestRefreshTokenTampered(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.CreateRefreshToken(7, "sn", false, time.Now().UTC())
	require.NoError(t, err)

	_, err = ts.VerifyRefreshToken(token + "x")
	require.ErrorIs(t, err, ErrTokenInvalid)

	// A refresh token is not a valid access token: different secret.
	_, err = ts.ValidateAccessToken(context.Background(), token)
	require.Error(t, err)
}

func TestRefreshTokenExpired(t *testing.T) {
	ts := newTestTokenService()
	ts.refreshTTL = -time.Hour

	token, err := ts.CreateRefreshToken(7, "sn", false, time.Now().UTC())
	require.NoError(t, err)

	_, err = ts.VerifyRefreshToken(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshTokenGarbage(t *testing.T) {
	ts := newTestTokenService()

	_, err := ts.VerifyRefreshToken("not-a-jwt")
	require.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	ts := newTestTokenService()
	ctx := context.Background()
	user := &models.User{ID: 42, Username: "ada"}

	token, err := ts.CreateAccessToken(user, "admin", time.Now().UTC())
	require.NoError(t, err)

	userID, err := ts.ValidateAccessToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestAccessTokenRevocation(t *testing.T) {
	ts := newTestTokenService()
	ctx := context.Background()
	user := &models.User{ID: 42, Username: "ada"}

	token, err := ts.CreateAccessToken(user, "user", time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, ts.RevokeAccessToken(ctx, token))

	_, err = ts.ValidateAccessToken(ctx, token)
	require.ErrorIs(t, err, ErrTokenRevoked)

	// Tokens carry distinct JTIs, so revocation is per token.
	other, err := ts.CreateAccessToken(user, "user", time.Now().UTC())
	require.NoError(t, err)
	_, err = ts.ValidateAccessToken(ctx, other)
	require.NoError(t, err)
}

func TestRevokeGarbageToken(t *testing.T) {
	ts := newTestTokenService()

	err := ts.RevokeAccessToken(context.Background(), "junk")
	require.ErrorIs(t, err, ErrTokenMalformed)
}
