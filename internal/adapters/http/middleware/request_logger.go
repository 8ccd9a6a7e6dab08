package middleware

import (
	"time"

	"github.com/E-ugine/kyc-verification-backend/internal/adapters/logger"
	"github.com/E-ugine/kyc-verification-backend/internal/ports"
	"github.com/labstack/echo/v4"
)

// RequestLogger writes one access line per request. Server errors are
// logged at error level and client errors at warn.
func RequestLogger(log ports.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			reqID := c.Request().Header.Get(echo.HeaderXRequestID)
			if reqID == "" {
				reqID = c.Response().Header().Get(echo.HeaderXRequestID)
			}
			if reqID != "" {
				c.SetRequest(c.Request().WithContext(logger.WithRequestID(c.Request().Context(), reqID)))
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			ctx := c.Request().Context()
			args := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"route_pattern", c.Path(),
				"status", status,
				"duration", time.Since(started).String(),
				"remote_ip", c.RealIP(),
			}
			switch {
			case status >= 500:
				log.Error(ctx, "http request", args...)
			case status >= 400:
				log.Warn(ctx, "http request", args...)
			default:
				log.Info(ctx, "http request", args...)
			}
			return err
		}
	}
}
