package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/avolkov/authgate/internal/service"
	"github.com/avolkov/authgate/internal/util"
)

// ErrorHandler converts errors escaping the handlers into JSON responses.
// Token failures become 401 with the error kind only; anything unexpected
// becomes a generic 500 and is logged with full detail.
func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if isUnauthorizedTokenError(err) {
			c.JSON(http.StatusUnauthorized, map[string]string{"message": err.Error()})
			return
		}

		var respErr util.ResponseError
		if errors.As(err, &respErr) {
			if err := c.JSON(respErr.Status, map[string]string{"message": respErr.Msg}); err != nil {
				log.Errorw("failed to write json response", "error", err)
			}
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			if he.Code == http.StatusInternalServerError {
				log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
			}
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			if err := c.JSON(he.Code, map[string]string{"message": msg}); err != nil {
				log.Errorw("failed to write json response", "error", err)
			}
			return
		}

		log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
		c.JSON(http.StatusInternalServerError, map[string]string{"message": "internal server error"})
	}
}

func isUnauthorizedTokenError(err error) bool {
	return errors.Is(err, service.ErrTokenExpired) ||
		errors.Is(err, service.ErrTokenInvalid) ||
		errors.Is(err, service.ErrTokenRevoked)
}
