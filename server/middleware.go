package server

import (
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/existflow/sitegate/internal/logger"
)

// requestLogger logs every request and its outcome
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		res := c.Response()
		logger.Info("HTTP Request",
			logger.F("method", req.Method),
			logger.F("uri", req.RequestURI),
			logger.F("remote", c.RealIP()),
			logger.F("status", res.Status),
			logger.F("size", res.Size),
			logger.F("request_id", res.Header().Get(echo.HeaderXRequestID)),
			logger.F("duration", time.Since(start).String()))

		return nil
	}
}

// authRateLimiter returns the per-IP limiter for the auth API, or nothing
// when AUTH_RATE_LIMIT is 0.
func (s *Server) authRateLimiter() []echo.MiddlewareFunc {
	if s.cfg.AuthRateLimit <= 0 {
		return nil
	}

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(s.cfg.AuthRateLimit),
		Burst:     int(math.Max(1, math.Ceil(s.cfg.AuthRateLimit))),
		ExpiresIn: 3 * time.Minute,
	})

	return []echo.MiddlewareFunc{middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, messageResponse{Message: "Forbidden"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logger.Warn("Auth rate limit exceeded", logger.F("remote", identifier))
			return c.JSON(http.StatusTooManyRequests, messageResponse{Message: "Too many requests"})
		},
	})}
}
