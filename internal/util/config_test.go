package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDurationOrDefault(t *testing.T) {
	t.Setenv("TEST_DURATION", "90m")
	assert.Equal(t, 90*time.Minute, parseDurationOrDefault("TEST_DURATION", time.Hour))

	t.Setenv("TEST_DURATION", "not-a-duration")
	assert.Equal(t, time.Hour, parseDurationOrDefault("TEST_DURATION", time.Hour))

	t.Setenv("TEST_DURATION", "")
	assert.Equal(t, time.Hour, parseDurationOrDefault("TEST_DURATION", time.Hour))
}

func TestNewSessionConfig(t *testing.T) {
	t.Setenv("SESSION_IDLE_AFTER", "6h")
	t.Setenv("SESSION_PERSISTENT_TTL", "168h")

	cfg := NewSessionConfig()
	assert.Equal(t, 6*time.Hour, cfg.IdleAfter)
	assert.Equal(t, 168*time.Hour, cfg.PersistentTTL)
}

func TestHashSHA256(t *testing.T) {
	// Known sha256 vector, hex-encoded.
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		HashSHA256("hello"),
	)
	assert.NotEqual(t, HashSHA256("hello"), HashSHA256("hello "))
}
