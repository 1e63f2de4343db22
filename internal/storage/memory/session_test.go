package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/authgate/internal/storage"
)

func startSession(t *testing.T, store *SessionStore, sessionHash, tokenHash string) int64 {
	t.Helper()
	id, err := store.StartSessionTx(context.Background(), storage.StartSession{
		UserID:      1,
		SessionHash: sessionHash,
		TokenHash:   tokenHash,
		Now:         time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

func TestStartSessionRejectsDuplicateHashes(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	startSession(t, store, "sh-1", "th-1")

	_, err := store.StartSessionTx(ctx, storage.StartSession{
		UserID: 2, SessionHash: "sh-1", TokenHash: "th-2", Now: time.Now().UTC(),
	})
	require.ErrorIs(t, err, storage.ErrDuplicate)

	_, err = store.StartSessionTx(ctx, storage.StartSession{
		UserID: 2, SessionHash: "sh-2", TokenHash: "th-1", Now: time.Now().UTC(),
	})
	require.ErrorIs(t, err, storage.ErrDuplicate)

	// The failed starts left nothing behind.
	_, ok := store.TokenByHash("th-2")
	assert.False(t, ok)
}

func TestRotateKeepsSingleUnusedToken(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	id := startSession(t, store, "sh-1", "th-1")

	now := time.Now().UTC()
	rotated, err := store.RotateTokenTx(ctx, storage.RotateToken{
		SessionHash: "sh-1", OldTokenHash: "th-1", NewTokenHash: "th-2", Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, id, rotated)

	old, ok := store.TokenByHash("th-1")
	require.True(t, ok)
	assert.True(t, old.IsUsed)

	fresh, ok := store.TokenByHash("th-2")
	require.True(t, ok)
	assert.False(t, fresh.IsUsed)

	session, ok := store.SessionByID(id)
	require.True(t, ok)
	assert.Equal(t, now, session.LastUsedAt)
}

func TestRotateReuseReportsOwner(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	id, err := store.StartSessionTx(ctx, storage.StartSession{
		UserID: 7, SessionHash: "sh-1", TokenHash: "th-1", Now: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = store.RotateTokenTx(ctx, storage.RotateToken{
		SessionHash: "sh-1", OldTokenHash: "th-1", NewTokenHash: "th-2", Now: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = store.RotateTokenTx(ctx, storage.RotateToken{
		SessionHash: "sh-1", OldTokenHash: "th-1", NewTokenHash: "th-3", Now: time.Now().UTC(),
	})
	var reuse *storage.TokenReuseError
	require.ErrorAs(t, err, &reuse)
	assert.Equal(t, int64(7), reuse.UserID)
	assert.Equal(t, id, reuse.SessionID)

	// The aborted rotation stored nothing.
	_, ok := store.TokenByHash("th-3")
	assert.False(t, ok)
}

func TestDeleteUserSessions(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	a, err := store.StartSessionTx(ctx, storage.StartSession{
		UserID: 7, SessionHash: "sh-a", TokenHash: "th-a", Now: time.Now().UTC(),
	})
	require.NoError(t, err)
	b, err := store.StartSessionTx(ctx, storage.StartSession{
		UserID: 7, SessionHash: "sh-b", TokenHash: "th-b", Now: time.Now().UTC(),
	})
	require.NoError(t, err)
	other, err := store.StartSessionTx(ctx, storage.StartSession{
		UserID: 9, SessionHash: "sh-c", TokenHash: "th-c", Now: time.Now().UTC(),
	})
	require.NoError(t, err)

	deleted, err := store.DeleteUserSessions(ctx, 7)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{a, b}, deleted)

	_, ok := store.SessionByID(other)
	assert.True(t, ok)
	_, ok = store.TokenByHash("th-a")
	assert.False(t, ok)
}

func TestEndSessionCascades(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	id := startSession(t, store, "sh-1", "th-1")

	_, err := store.RotateTokenTx(ctx, storage.RotateToken{
		SessionHash: "sh-1", OldTokenHash: "th-1", NewTokenHash: "th-2", Now: time.Now().UTC(),
	})
	require.NoError(t, err)

	deleted, err := store.EndSession(ctx, "sh-1")
	require.NoError(t, err)
	assert.Equal(t, id, deleted)

	// Historical and live token rows are both gone.
	_, ok := store.TokenByHash("th-1")
	assert.False(t, ok)
	_, ok = store.TokenByHash("th-2")
	assert.False(t, ok)

	_, err = store.EndSession(ctx, "sh-1")
	require.ErrorIs(t, err, storage.ErrSessionNotFound)
}
