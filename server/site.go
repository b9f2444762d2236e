package server

import (
	_ "embed"
	"net/http"
	"path"
	"path/filepath"

	"github.com/labstack/echo/v4"
)

//go:embed web/login.html
var loginPage []byte

func (s *Server) handleLoginPage(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, loginPage)
}

// handleSite serves files from SiteDir. The gate has already run.
func (s *Server) handleSite(c echo.Context) error {
	switch c.Request().Method {
	case http.MethodGet, http.MethodHead:
	default:
		return echo.ErrMethodNotAllowed
	}

	clean := path.Clean("/" + c.Param("*"))
	return c.File(filepath.Join(s.cfg.SiteDir, filepath.FromSlash(clean)))
}
