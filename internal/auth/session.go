package auth

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CookieName is the session cookie set by every successful login path.
const CookieName = "web_access"

// cookieMaxAge is the outer browser envelope; the embedded expiry is what
// actually bounds the session.
const cookieMaxAge = 7 * 24 * 60 * 60

// Session is a decoded, valid session cookie.
type Session struct {
	ExpiresAt time.Time
}

// CookieOptions are the transport attributes of the session cookie.
type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
}

// SessionCodec encodes "<secret>:<expiresAtMillis>" cookie values.
type SessionCodec struct {
	secret string
	ttl    time.Duration
	opts   CookieOptions
}

func NewSessionCodec(secret string, ttl time.Duration, opts CookieOptions) *SessionCodec {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	return &SessionCodec{secret: secret, ttl: ttl, opts: opts}
}

// TTL returns the lifetime given to minted sessions.
func (c *SessionCodec) TTL() time.Duration {
	return c.ttl
}

// Mint returns a fresh cookie value valid for the codec TTL.
func (c *SessionCodec) Mint(now time.Time) (string, time.Time) {
	exp := time.UnixMilli(now.Add(c.ttl).UnixMilli())
	return c.secret + ":" + strconv.FormatInt(exp.UnixMilli(), 10), exp
}

// Validate is the one place a session cookie value is judged. The secret
// must match exactly and now must be before the embedded expiry.
func (c *SessionCodec) Validate(value string, now time.Time) (Session, error) {
	if c.secret == "" || value == "" {
		return Session{}, ErrInvalidSession
	}

	secret, exp, err := splitValue(value)
	if err != nil {
		return Session{}, err
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(c.secret)) != 1 {
		return Session{}, ErrInvalidSession
	}

	if !now.Before(exp) {
		return Session{}, ErrSessionExpired
	}
	return Session{ExpiresAt: exp}, nil
}

// ParseExpiry reads the embedded expiry without checking the secret. Holders
// of a cookie that cannot verify it, such as the CLI, use it for display.
func ParseExpiry(value string) (time.Time, error) {
	_, exp, err := splitValue(value)
	return exp, err
}

func splitValue(value string) (string, time.Time, error) {
	i := strings.LastIndexByte(value, ':')
	if i < 0 {
		return "", time.Time{}, ErrInvalidSession
	}
	ms, err := strconv.ParseInt(value[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, ErrInvalidSession
	}
	return value[:i], time.UnixMilli(ms), nil
}

// Cookie wraps a minted value in the session cookie.
func (c *SessionCodec) Cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: c.opts.SameSite,
	}
}

// ClearCookie deletes the session cookie immediately.
func (c *SessionCodec) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: c.opts.SameSite,
	}
}

// ParseSameSite maps the config value to a cookie mode; anything but
// "strict" is Lax.
func ParseSameSite(v string) http.SameSite {
	if strings.EqualFold(strings.TrimSpace(v), "strict") {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}
