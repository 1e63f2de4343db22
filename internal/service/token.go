package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/avolkov/authgate/internal/models"
	"github.com/avolkov/authgate/internal/storage"
	"github.com/avolkov/authgate/internal/util"
)

var (
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrTokenMalformed       = errors.New("token is malformed")
	ErrTokenRevoked         = errors.New("token revoked")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

// TokenService issues and verifies the JWT credentials at the boundary of the
// session core. The refresh JWT carries the raw session number; the session
// core itself only ever sees the signed string and its hash.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	blacklist     storage.TokenBlacklist
}

func NewTokenService(cfg *util.TokenConfig, blacklist storage.TokenBlacklist) *TokenService {
	return &TokenService{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		blacklist:     blacklist,
	}
}

type accessClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of the refresh credential: the owning user,
// the opaque session number and the persistence flag.
type RefreshClaims struct {
	SessionNumber string `json:"session_number"`
	Persistent    bool   `json:"persistent"`
	jwt.RegisteredClaims
}

func (c *RefreshClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrTokenMalformed)
	}
	return id, nil
}

// CreateAccessToken creates an HS512 signed access token with a fresh JTI.
func (ts *TokenService) CreateAccessToken(user *models.User, role string, now time.Time) (string, error) {
	claims := &accessClaims{
		Username: user.Username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(ts.accessSecret)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}
	return signedToken, nil
}

// CreateRefreshToken creates the refresh credential for a session. The signed
// string is what the client holds; storage only ever receives its hash.
func (ts *TokenService) CreateRefreshToken(userID int64, sessionNumber string, persistent bool, now time.Time) (string, error) {
	claims := &RefreshClaims{
		SessionNumber: sessionNumber,
		Persistent:    persistent,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.refreshTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(ts.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}
	return signedToken, nil
}

// VerifyRefreshToken checks signature and expiry and returns the parsed
// claims.
func (ts *TokenService) VerifyRefreshToken(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return ts.refreshSecret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(util.JWTLeeWay),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if parsed == nil || !parsed.Valid || claims.SessionNumber == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ValidateAccessToken verifies an access token, checks the revocation list
// and returns the user id from the subject claim.
func (ts *TokenService) ValidateAccessToken(ctx context.Context, token string) (int64, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return ts.accessSecret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(util.JWTLeeWay),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if parsed == nil || !parsed.Valid {
		return 0, ErrTokenInvalid
	}

	revoked, err := ts.blacklist.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to check revocation list: %w", err)
	}
	if revoked {
		return 0, ErrTokenRevoked
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrTokenMalformed)
	}
	return userID, nil
}

// RevokeAccessToken puts the token's JTI on the revocation list for the rest
// of the token's lifetime. Signature failures are reported, expiry is not:
// an expired token needs no revocation.
func (ts *TokenService) RevokeAccessToken(ctx context.Context, token string) error {
	claims := &accessClaims{}
	parsed, _, err := new(jwt.Parser).ParseUnverified(token, claims)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	if parsed == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return ErrTokenMalformed
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if err := ts.blacklist.RevokeToken(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}
