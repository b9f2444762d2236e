package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/existflow/sitegate/internal/auth"
	"github.com/existflow/sitegate/internal/db"
	"github.com/existflow/sitegate/internal/logger"
	"github.com/existflow/sitegate/internal/mailer"
)

type credentialsRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type verifyOTPRequest struct {
	Token string `json:"token" form:"token"`
	OTP   string `json:"otp" form:"otp"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type okResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type requestOTPResponse struct {
	Success       bool   `json:"success"`
	Authenticated bool   `json:"authenticated,omitempty"`
	Message       string `json:"message,omitempty"`
	Token         string `json:"token,omitempty"`
}

type refreshResponse struct {
	Success   bool  `json:"success"`
	ExpiresAt int64 `json:"expiresAt"`
}

const (
	msgDisabled           = "Access control is not enabled"
	msgInvalidRequest     = "Invalid request"
	msgMissingCredentials = "Username and password are required"
	msgInvalidCredentials = "Invalid credentials"
	msgMissingOTP         = "Token and code are required"
	msgInvalidOTP         = "Invalid or expired code"
	msgEmailNotConfigured = "Email service not configured"
	msgEmailFailed        = "Failed to send verification code"
	msgOTPSent            = "Verification code sent to your email"
	msgNoSession          = "No active session"
	msgLoggedOut          = "Logged out"
)

func (s *Server) disabled(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, messageResponse{Message: msgDisabled})
}

// bindCredentials reads the username/password body. A non-empty message
// means the request is unusable.
func bindCredentials(c echo.Context) (credentialsRequest, string) {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return req, msgInvalidRequest
	}
	if req.Username == "" || req.Password == "" {
		return req, msgMissingCredentials
	}
	return req, ""
}

// setSession mints a session cookie and returns its value's expiry in ms
func (s *Server) setSession(c echo.Context) int64 {
	value, exp := s.sessions.Mint(s.now())
	c.SetCookie(s.sessions.Cookie(value))
	return exp.UnixMilli()
}

// handleLogin handles plain username/password login
func (s *Server) handleLogin(c echo.Context) error {
	if !s.cfg.Access.Enabled {
		return s.disabled(c)
	}

	req, msg := bindCredentials(c)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: msg})
	}

	if !s.creds.Verify(req.Username, req.Password) {
		s.record(c, db.EventLoginFailed, auth.ErrInvalidCredentials.Error())
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: msgInvalidCredentials})
	}

	s.setSession(c)
	s.record(c, db.EventLoginOK, "")
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

// handleRequestOTP checks credentials and, once the OTP start date has
// passed, mails a passcode instead of logging in directly.
func (s *Server) handleRequestOTP(c echo.Context) error {
	if !s.cfg.Access.Enabled {
		return s.disabled(c)
	}

	req, msg := bindCredentials(c)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: msg})
	}

	if !s.creds.Verify(req.Username, req.Password) {
		s.record(c, db.EventLoginFailed, "request-otp: "+auth.ErrInvalidCredentials.Error())
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: msgInvalidCredentials})
	}

	now := s.now()
	if !auth.OTPRequired(s.cfg.OTP.StartDate, s.cfg.OTP.Timezone, now) {
		s.setSession(c)
		s.record(c, db.EventLoginOK, "otp not required")
		return c.JSON(http.StatusOK, requestOTPResponse{Success: true, Authenticated: true})
	}

	if s.mailer == nil || s.cfg.Email.To == "" {
		logger.Error("OTP requested but email is not configured")
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: msgEmailNotConfigured})
	}

	challenge, err := s.otp.Issue(s.cfg.Email.To, now)
	if err != nil {
		return err
	}

	if err := mailer.SendOTP(c.Request().Context(), s.mailer, s.cfg.Email.To, challenge.Code, s.otp.TTL()); err != nil {
		logger.Error("Failed to send OTP email", logger.F("error", err))
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: msgEmailFailed})
	}

	s.record(c, db.EventOTPSent, challenge.ID)
	return c.JSON(http.StatusOK, requestOTPResponse{
		Success: true,
		Message: msgOTPSent,
		Token:   challenge.Token,
	})
}

// handleVerifyOTP exchanges a valid token and code for a session
func (s *Server) handleVerifyOTP(c echo.Context) error {
	if !s.cfg.Access.Enabled {
		return s.disabled(c)
	}

	var req verifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: msgInvalidRequest})
	}
	if req.Token == "" || req.OTP == "" {
		return c.JSON(http.StatusBadRequest, messageResponse{Message: msgMissingOTP})
	}

	now := s.now()
	v, err := s.otp.Verify(req.Token, req.OTP, now)
	if err != nil {
		s.record(c, db.EventOTPRejected, err.Error())
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: msgInvalidOTP})
	}

	if v.Email != s.cfg.Email.To {
		s.record(c, db.EventOTPRejected, "recipient mismatch")
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: msgInvalidOTP})
	}

	if s.replay != nil {
		fresh, err := s.replay.Consume(c.Request().Context(), v.ID, v.ExpiresAt, now)
		if err != nil {
			return err
		}
		if !fresh {
			s.record(c, db.EventOTPRejected, auth.ErrOTPReplayed.Error())
			return c.JSON(http.StatusUnauthorized, messageResponse{Message: msgInvalidOTP})
		}
	}

	s.setSession(c)
	s.record(c, db.EventOTPVerified, v.ID)
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

// handleRefreshSession extends a still-valid session
func (s *Server) handleRefreshSession(c echo.Context) error {
	if !s.cfg.Access.Enabled {
		return s.disabled(c)
	}

	cookie, err := c.Cookie(auth.CookieName)
	if err != nil || cookie.Value == "" {
		s.record(c, db.EventRefreshRejected, "no cookie")
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: msgNoSession})
	}

	if _, err := s.sessions.Validate(cookie.Value, s.now()); err != nil {
		s.record(c, db.EventRefreshRejected, err.Error())
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: msgNoSession})
	}

	exp := s.setSession(c)
	s.record(c, db.EventSessionRefreshed, "")
	return c.JSON(http.StatusOK, refreshResponse{Success: true, ExpiresAt: exp})
}

// handleLogout always clears the cookie
func (s *Server) handleLogout(c echo.Context) error {
	c.SetCookie(s.sessions.ClearCookie())
	s.record(c, db.EventLogout, "")
	return c.JSON(http.StatusOK, okResponse{OK: true, Message: msgLoggedOut})
}

// record writes an audit event; failures are logged and otherwise ignored
func (s *Server) record(c echo.Context, kind db.EventKind, detail string) {
	logger.Info("Auth event",
		logger.F("kind", string(kind)),
		logger.F("remote", c.RealIP()))

	if s.audit == nil {
		return
	}

	err := s.audit.Record(c.Request().Context(), db.Event{
		Kind:      kind,
		RemoteIP:  c.RealIP(),
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		Detail:    detail,
		CreatedAt: s.now(),
	})
	if err != nil {
		logger.Warn("Failed to record audit event", logger.F("kind", string(kind)), logger.F("error", err))
	}
}
