package gate

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/existflow/sitegate/internal/logger"
)

// Middleware runs Decide before routing. now is injectable for tests.
func (g *Gate) Middleware(now func() time.Time) echo.MiddlewareFunc {
	if now == nil {
		now = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := g.Decide(c.Request(), now())
			if d.Outcome == Allow {
				return next(c)
			}

			logger.Debug("Gate redirect",
				logger.F("path", c.Request().URL.Path),
				logger.F("reason", string(d.Reason)))
			return c.Redirect(http.StatusFound, d.Location)
		}
	}
}
