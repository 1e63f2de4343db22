package util

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultAccessTTL  = 5 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour

	defaultIdleAfter     = 24 * time.Hour
	defaultPersistentTTL = 30 * 24 * time.Hour

	JWTLeeWay = 5 * time.Second
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewTokenConfig() *TokenConfig {
	accessSecret := os.Getenv("ACCESS_TOKEN_SECRET")
	if accessSecret == "" {
		log.Fatal("ACCESS_TOKEN_SECRET is not set")
	}
	refreshSecret := os.Getenv("REFRESH_TOKEN_SECRET")
	if refreshSecret == "" {
		log.Fatal("REFRESH_TOKEN_SECRET is not set")
	}
	return &TokenConfig{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     parseDurationOrDefault("ACCESS_TOKEN_TTL", defaultAccessTTL),
		RefreshTTL:    parseDurationOrDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL),
	}
}

// SessionConfig holds the reclamation policy: how long a non-persistent
// session may sit unused, and how long a "remember me" session lives.
type SessionConfig struct {
	IdleAfter     time.Duration
	PersistentTTL time.Duration
}

func NewSessionConfig() *SessionConfig {
	return &SessionConfig{
		IdleAfter:     parseDurationOrDefault("SESSION_IDLE_AFTER", defaultIdleAfter),
		PersistentTTL: parseDurationOrDefault("SESSION_PERSISTENT_TTL", defaultPersistentTTL),
	}
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}
