package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"saasresto/pkg/logger"
)

// RequestIDMiddleware assigns a request ID to every request, reusing the
// client's when present, and echoes it back in the response header. The
// key is shared with pkg/logger so request logs correlate.
func RequestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get(logger.RequestIDKey)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(logger.RequestIDKey, requestID)
		c.Response().Header().Set(logger.RequestIDKey, requestID)
		return next(c)
	}
}
