package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/existflow/sitegate/internal/auth"
	"github.com/existflow/sitegate/internal/config"
	"github.com/existflow/sitegate/internal/db"
	"github.com/existflow/sitegate/internal/gate"
	"github.com/existflow/sitegate/internal/logger"
	"github.com/existflow/sitegate/internal/mailer"
)

// Auditor records auth outcomes. *db.DB satisfies it.
type Auditor interface {
	Record(ctx context.Context, e db.Event) error
}

// Option customizes a Server
type Option func(*Server)

// WithMailer replaces the SMTP sender built from config
func WithMailer(m mailer.Sender) Option {
	return func(s *Server) { s.mailer = m }
}

// WithReplayGuard replaces the in-memory replay guard
func WithReplayGuard(g auth.ReplayGuard) Option {
	return func(s *Server) { s.replay = g }
}

// WithAuditor enables audit recording
func WithAuditor(a Auditor) Option {
	return func(s *Server) { s.audit = a }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server is the access gate in front of the static site
type Server struct {
	cfg      *config.Config
	creds    *auth.Credentials
	otp      *auth.OTPIssuer
	sessions *auth.SessionCodec
	gate     *gate.Gate
	mailer   mailer.Sender
	replay   auth.ReplayGuard
	audit    Auditor
	now      func() time.Time
	echo     *echo.Echo
}

// New creates a new server from a validated config
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	sessions := auth.NewSessionCodec(cfg.Access.Secret, cfg.SessionTTL(), auth.CookieOptions{
		Secure:   cfg.IsProduction(),
		SameSite: auth.ParseSameSite(cfg.Access.CookieSameSite),
	})

	s := &Server{
		cfg:      cfg,
		creds:    auth.NewCredentials(cfg.Access.Username, cfg.Access.Password, cfg.Access.PasswordHash),
		otp:      auth.NewOTPIssuer(cfg.OTP.SigningSecret, cfg.OTPTTL()),
		sessions: sessions,
		gate:     gate.New(cfg.Access.Enabled, sessions),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.mailer == nil && cfg.EmailConfigured() {
		sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
			Host: cfg.Email.Host,
			Port: cfg.Email.Port,
			User: cfg.Email.User,
			Pass: cfg.Email.Pass,
			From: cfg.Email.From,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure mailer: %w", err)
		}
		s.mailer = sender
	}

	if s.replay == nil && cfg.OTP.SingleUse {
		s.replay = auth.NewMemoryReplayGuard()
	}

	s.setupEcho()

	return s, nil
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(requestLogger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))

	e.GET("/health", s.handleHealth)
	e.GET(gate.LoginPath, s.handleLoginPage)

	// Auth API (exempt from the gate)
	limit := s.authRateLimiter()
	e.POST("/api/auth", s.handleLogin, limit...)
	e.POST("/api/auth/request-otp", s.handleRequestOTP, limit...)
	e.POST("/api/auth/verify-otp", s.handleVerifyOTP, limit...)
	e.POST("/api/auth/refresh-session", s.handleRefreshSession, limit...)
	e.POST("/api/auth/logout", s.handleLogout, limit...)

	// Everything else is the site, behind the gate
	e.Any("/*", s.handleSite, s.gate.Middleware(s.now))

	s.echo = e
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and drains in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleError renders every error as {"message": ...} without leaking internals
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "Internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok && code < http.StatusInternalServerError {
			msg = m
		} else if code < http.StatusInternalServerError {
			msg = http.StatusText(code)
		}
	}

	if code >= http.StatusInternalServerError {
		logger.Error("Request failed",
			logger.F("method", c.Request().Method),
			logger.F("uri", c.Request().RequestURI),
			logger.F("error", err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, messageResponse{Message: msg})
	}
	if err != nil {
		logger.Error("Failed to write error response", logger.F("error", err))
	}
}
