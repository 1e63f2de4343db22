package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avolkov/authgate/internal/models"
	"github.com/avolkov/authgate/internal/service"
	"github.com/avolkov/authgate/internal/storage/memory"
	"github.com/avolkov/authgate/internal/util"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	log := zap.NewNop().Sugar()

	tokenCfg := &util.TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     5 * time.Minute,
		RefreshTTL:    30 * 24 * time.Hour,
	}
	sessionCfg := &util.SessionConfig{
		IdleAfter:     24 * time.Hour,
		PersistentTTL: 30 * 24 * time.Hour,
	}

	sessions := memory.NewSessionStore()
	users := memory.NewUserStore()

	authService := service.NewAuthService(users, log)
	sessionManager := service.NewSessionManager(sessions, sessionCfg, log)
	tokenService := service.NewTokenService(tokenCfg, memory.NewTokenBlacklist())

	e := echo.New()
	ctrl := NewController(authService, sessionManager, tokenService, tokenCfg, sessionCfg, log)
	RegisterHandlers(e.Group("/api"), ctrl)
	return e
}

func doJSON(e *echo.Echo, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func refreshCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	t.Fatal("no refresh cookie in response")
	return nil
}

func registerAndSignIn(t *testing.T, e *echo.Echo, remember bool) *httptest.ResponseRecorder {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/api/register",
		`{"email":"kat@example.com","username":"kat","password":"s3cret-pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := `{"identifier":"kat@example.com","password":"s3cret-pw"}`
	if remember {
		body = `{"identifier":"kat@example.com","password":"s3cret-pw","remember":true}`
	}
	rec = doJSON(e, http.MethodPost, "/api/sign-in", body)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	e := newTestServer(t)

	body := `{"email":"kat@example.com","username":"kat","password":"s3cret-pw"}`
	rec := doJSON(e, http.MethodPost, "/api/register", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/register", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignInWrongPassword(t *testing.T) {
	e := newTestServer(t)
	doJSON(e, http.MethodPost, "/api/register",
		`{"email":"kat@example.com","username":"kat","password":"s3cret-pw"}`)

	rec := doJSON(e, http.MethodPost, "/api/sign-in",
		`{"identifier":"kat@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestSignInSetsRefreshCookie(t *testing.T) {
	e := newTestServer(t)
	rec := registerAndSignIn(t, e, false)

	var resp models.AccessTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)

	cookie := refreshCookieFrom(t, rec)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
	// Session-scoped login gets a session cookie, no MaxAge.
	assert.Zero(t, cookie.MaxAge)
}

func TestSignInRememberSetsMaxAge(t *testing.T) {
	e := newTestServer(t)
	rec := registerAndSignIn(t, e, true)

	cookie := refreshCookieFrom(t, rec)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), cookie.MaxAge)
}

func TestRefreshRotatesCookie(t *testing.T) {
	e := newTestServer(t)
	signIn := registerAndSignIn(t, e, false)
	first := refreshCookieFrom(t, signIn)

	rec := doJSON(e, http.MethodPost, "/api/refresh", "", first)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.AccessTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)

	second := refreshCookieFrom(t, rec)
	assert.NotEmpty(t, second.Value)
	assert.NotEqual(t, first.Value, second.Value)

	// Presenting the rotated-out cookie again is rejected.
	rec = doJSON(e, http.MethodPost, "/api/refresh", "", first)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, refreshCookieFrom(t, rec).Value)
}

func TestRefreshReplayRevokesSession(t *testing.T) {
	e := newTestServer(t)
	signIn := registerAndSignIn(t, e, false)
	first := refreshCookieFrom(t, signIn)

	rec := doJSON(e, http.MethodPost, "/api/refresh", "", first)
	require.Equal(t, http.StatusOK, rec.Code)
	second := refreshCookieFrom(t, rec)

	// Replay the old cookie, then confirm the current one died with the
	// session.
	rec = doJSON(e, http.MethodPost, "/api/refresh", "", first)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/refresh", "", second)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshWithoutCookie(t *testing.T) {
	e := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshGarbageCookie(t *testing.T) {
	e := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/api/refresh", "",
		&http.Cookie{Name: RefreshCookieName, Value: "not-a-jwt"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, refreshCookieFrom(t, rec).Value)
}

func TestSignOutEndsSession(t *testing.T) {
	e := newTestServer(t)
	signIn := registerAndSignIn(t, e, false)
	cookie := refreshCookieFrom(t, signIn)

	rec := doJSON(e, http.MethodPost, "/api/sign-out", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -1, refreshCookieFrom(t, rec).MaxAge)

	// The session is gone, so the old cookie no longer refreshes.
	rec = doJSON(e, http.MethodPost, "/api/refresh", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignOutWithoutCookie(t *testing.T) {
	e := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/api/sign-out", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -1, refreshCookieFrom(t, rec).MaxAge)
}
