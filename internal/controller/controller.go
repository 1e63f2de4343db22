package controller

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/avolkov/authgate/internal/models"
	"github.com/avolkov/authgate/internal/service"
	"github.com/avolkov/authgate/internal/util"
)

const RefreshCookieName = "refresh_token"

// Generic client-facing messages. Token and session failures are collapsed
// so a caller cannot tell a missing session from a replayed token; the
// distinction is logged server-side only.
const (
	msgInvalidCredentials = "Incorrect sign-in credentials. Please try again."
	msgInvalidRefresh     = "Invalid or expired refresh token."
	msgRetryLater         = "An error occurred. Please try again later."
)

type Controller struct {
	authService    *service.AuthService
	sessionManager *service.SessionManager
	tokenService   *service.TokenService
	tokenCfg       *util.TokenConfig
	sessionCfg     *util.SessionConfig
	log            *zap.SugaredLogger
}

func NewController(
	authService *service.AuthService,
	sessionManager *service.SessionManager,
	tokenService *service.TokenService,
	tokenCfg *util.TokenConfig,
	sessionCfg *util.SessionConfig,
	log *zap.SugaredLogger,
) *Controller {
	return &Controller{
		authService:    authService,
		sessionManager: sessionManager,
		tokenService:   tokenService,
		tokenCfg:       tokenCfg,
		sessionCfg:     sessionCfg,
		log:            log,
	}
}

func RegisterHandlers(g *echo.Group, c *Controller) {
	g.GET("/ping", c.CheckServer)
	g.POST("/register", c.Register)
	g.POST("/sign-in", c.SignIn)
	g.POST("/sign-out", c.SignOut)
	g.POST("/refresh", c.Refresh)
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

// (POST /api/register).
func (c *Controller) Register(ctx echo.Context) error {
	var req models.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if _, err := c.authService.Register(ctx.Request().Context(), req); err != nil {
		if errors.Is(err, service.ErrUserExists) {
			return ctx.JSON(http.StatusConflict, models.MessageResponse{Message: "User already exists."})
		}
		c.log.Errorw("registration failed", "error", err)
		return ctx.JSON(http.StatusInternalServerError, models.MessageResponse{Message: msgRetryLater})
	}

	return ctx.JSON(http.StatusCreated, models.MessageResponse{Message: "User registration success."})
}

// (POST /api/sign-in).
func (c *Controller) SignIn(ctx echo.Context) error {
	var req models.SignInRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	reqCtx := ctx.Request().Context()
	user, err := c.authService.VerifyCredentials(reqCtx, req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return ctx.JSON(http.StatusUnauthorized, models.MessageResponse{Message: msgInvalidCredentials})
		}
		c.log.Errorw("credential verification failed", "error", err)
		return ctx.JSON(http.StatusInternalServerError, models.MessageResponse{Message: msgRetryLater})
	}

	role, err := c.authService.RoleName(reqCtx, user)
	if err != nil {
		c.log.Errorw("failed to resolve role", "userID", user.ID, "error", err)
		return ctx.JSON(http.StatusInternalServerError, models.MessageResponse{Message: msgRetryLater})
	}

	now := time.Now().UTC()
	sessionNumber := c.sessionManager.GenerateSessionNumber(user.ID)

	accessToken, err := c.tokenService.CreateAccessToken(user, role, now)
	if err != nil {
		c.log.Errorw("failed to create access token", "error", err)
		return ctx.JSON(http.StatusInternalServerError, models.MessageResponse{Message: msgRetryLater})
	}
	refreshToken, err := c.tokenService.CreateRefreshToken(user.ID, sessionNumber, req.Remember, now)
	if err != nil {
		c.log.Errorw("failed to create refresh token", "error", err)
		return ctx.JSON(http.StatusInternalServerError, models.MessageResponse{Message: msgRetryLater})
	}

	var expiresAt *time.Time
	if req.Remember {
		t := now.Add(c.sessionCfg.PersistentTTL)
		expiresAt = &t
	}

	if _, err := c.sessionManager.StartSession(reqCtx, service.StartSessionParams{
		SessionNumber: sessionNumber,
		UserID:        user.ID,
		RefreshToken:  refreshToken,
		ExpiresAt:     expiresAt,
	}); err != nil {
		c.log.Errorw("sign-in failed", "identifier", service.MaskIdentifier(req.Identifier), "error", err)
		return ctx.JSON(http.StatusInternalServerError, models.MessageResponse{Message: msgRetryLater})
	}

	ctx.SetCookie(c.refreshCookie(refreshToken, req.Remember))
	return ctx.JSON(http.StatusOK, models.AccessTokenResponse{AccessToken: accessToken})
}

// (POST /api/refresh).
func (c *Controller) Refresh(ctx echo.Context) error {
	cookie, err := ctx.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return ctx.JSON(http.StatusUnauthorized, models.MessageResponse{Message: msgInvalidRefresh})
	}

	claims, err := c.tokenService.VerifyRefreshToken(cookie.Value)
	if err != nil {
		c.log.Infow("refresh with invalid credential", "error", err)
		ctx.SetCookie(c.clearRefreshCookie())
		return ctx.JSON(http.StatusForbidden, models.MessageResponse{Message: msgInvalidRefresh})
	}

	userID, err := claims.UserID()
	if err != nil {
		ctx.SetCookie(c.clearRefreshCookie())
		return ctx.JSON(http.StatusForbidden, models.MessageResponse{Message: msgInvalidRefresh})
	}

	reqCtx := ctx.Request().Context()
	user, err := c.authService.UserByID(reqCtx, userID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			ctx.SetCookie(c.clearRefreshCookie())
			return ctx.JSON(http.StatusUnauthorized, models.MessageResponse{Message: msgInvalidRefresh})
		}
		c.log.Errorw("refresh failed", "error", err)
		return ctx.JSON(http.StatusInternalServerError, models.MessageResponse{Message: msgRetryLater})
	}

	role, err := c.authService.RoleName(reqCtx, user)
	if err != nil {
		c.log.Errorw("failed to resolve role", "userID", user.ID, "error", err)
		return ctx.JSON(http.StatusInternalServerError, models.MessageResponse{Message: msgRetryLater})
	}

	now := time.Now().UTC()
	accessToken, err := c.tokenService.CreateAccessToken(user, role, now)
	if err != nil {
		c.log.Errorw("failed to create access token", "error", err)
		return ctx.JSON(http.StatusInternalServerError, models.MessageResponse{Message: msgRetryLater})
	}
	newRefreshToken, err := c.tokenService.CreateRefreshToken(userID, claims.SessionNumber, claims.Persistent, now)
	if err != nil {
		c.log.Errorw("failed to create refresh token", "error", err)
		return ctx.JSON(http.StatusInternalServerError, models.MessageResponse{Message: msgRetryLater})
	}

	if _, err := c.sessionManager.RotateToken(reqCtx, claims.SessionNumber, cookie.Value, newRefreshToken); err != nil {
		return c.rotationFailure(ctx, err)
	}

	ctx.SetCookie(c.refreshCookie(newRefreshToken, claims.Persistent))
	return ctx.JSON(http.StatusOK, models.AccessTokenResponse{AccessToken: accessToken})
}

// (POST /api/sign-out). Best-effort: the cookie is always cleared, the
// session and the presented access token are revoked when identifiable.
func (c *Controller) SignOut(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	if auth := ctx.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			if err := c.tokenService.RevokeAccessToken(reqCtx, token); err != nil {
				c.log.Debugw("could not revoke access token on sign-out", "error", err)
			}
		}
	}

	cookie, err := ctx.Cookie(RefreshCookieName)
	if err == nil && cookie.Value != "" {
		if claims, err := c.tokenService.VerifyRefreshToken(cookie.Value); err == nil {
			if _, err := c.sessionManager.EndSession(reqCtx, claims.SessionNumber); err != nil {
				c.log.Errorw("failed to end session on sign-out", "error", err)
			}
		}
	}

	ctx.SetCookie(c.clearRefreshCookie())
	return ctx.JSON(http.StatusOK, models.MessageResponse{Message: "Logged out successfully."})
}

func (c *Controller) rotationFailure(ctx echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.log.Infow("refresh for unknown session", "error", err)
		ctx.SetCookie(c.clearRefreshCookie())
		return ctx.JSON(http.StatusUnauthorized, models.MessageResponse{Message: msgInvalidRefresh})
	case errors.Is(err, service.ErrStaleRefreshToken), errors.Is(err, service.ErrTokenReuseDetected):
		c.log.Warnw("refresh rejected", "error", err)
		ctx.SetCookie(c.clearRefreshCookie())
		return ctx.JSON(http.StatusForbidden, models.MessageResponse{Message: msgInvalidRefresh})
	default:
		c.log.Errorw("rotation failed", "error", err)
		return ctx.JSON(http.StatusInternalServerError, models.MessageResponse{Message: msgRetryLater})
	}
}

// refreshCookie builds the http-only refresh cookie. Persistent sessions get
// a bounded MaxAge; session-scoped logins get a session cookie.
func (c *Controller) refreshCookie(token string, persistent bool) *http.Cookie {
	cookie := &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
	if persistent {
		cookie.MaxAge = int(c.tokenCfg.RefreshTTL.Seconds())
	}
	return cookie
}

func (c *Controller) clearRefreshCookie() *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   -1,
	}
}
