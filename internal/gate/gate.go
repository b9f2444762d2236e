// Package gate decides, per request, whether the site may be served or the
// visitor must log in first. Decisions are pure and do no I/O.
package gate

import (
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/existflow/sitegate/internal/auth"
)

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

// Outcome is the gate's verdict for one request.
type Outcome int

const (
	Allow Outcome = iota
	RedirectToLogin
)

// Reason explains an outcome for logs.
type Reason string

const (
	ReasonDisabled   Reason = "disabled"
	ReasonExempt     Reason = "exempt"
	ReasonSession    Reason = "session"
	ReasonNoCookie   Reason = "no_cookie"
	ReasonBadSession Reason = "bad_session"
)

// Decision is what Decide returns.
type Decision struct {
	Outcome  Outcome
	Reason   Reason
	Location string // set for RedirectToLogin
}

// SessionValidator is satisfied by *auth.SessionCodec.
type SessionValidator interface {
	Validate(value string, now time.Time) (auth.Session, error)
}

// Gate holds the feature flag and the session validator.
type Gate struct {
	enabled  bool
	sessions SessionValidator
}

func New(enabled bool, sessions SessionValidator) *Gate {
	return &Gate{enabled: enabled, sessions: sessions}
}

// Decide applies the gate rules to r at now.
func (g *Gate) Decide(r *http.Request, now time.Time) Decision {
	if !g.enabled {
		return Decision{Outcome: Allow, Reason: ReasonDisabled}
	}

	if IsExempt(r.URL.Path) {
		return Decision{Outcome: Allow, Reason: ReasonExempt}
	}

	cookie, err := r.Cookie(auth.CookieName)
	if err != nil || cookie.Value == "" {
		return g.redirect(r, ReasonNoCookie)
	}

	if _, err := g.sessions.Validate(cookie.Value, now); err != nil {
		return g.redirect(r, ReasonBadSession)
	}

	return Decision{Outcome: Allow, Reason: ReasonSession}
}

func (g *Gate) redirect(r *http.Request, reason Reason) Decision {
	return Decision{
		Outcome:  RedirectToLogin,
		Reason:   reason,
		Location: LoginURL(r.URL.RequestURI()),
	}
}

// LoginURL builds the login location carrying the originally requested path.
func LoginURL(original string) string {
	if original == "" {
		original = "/"
	}
	return LoginPath + "?" + url.Values{"redirect": {original}}.Encode()
}

var exemptPrefixes = []string{
	"/static/",
	"/assets/",
	"/_next/",
	"/api/auth/",
	"/studio/",
}

var exemptExact = map[string]bool{
	LoginPath:         true,
	"/favicon.ico":    true,
	"/robots.txt":     true,
	"/api/auth":       true,
	"/api/revalidate": true,
	"/studio":         true,
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".svg":  true,
	".webp": true,
	".ico":  true,
	".avif": true,
	".bmp":  true,
}

// IsExempt reports whether p is served without a session. The path is
// cleaned first so dot segments cannot smuggle a protected path through an
// exempt prefix.
func IsExempt(p string) bool {
	if p == "" {
		p = "/"
	}
	clean := path.Clean("/" + strings.TrimPrefix(p, "/"))

	if exemptExact[clean] {
		return true
	}
	for _, prefix := range exemptPrefixes {
		if strings.HasPrefix(clean, prefix) {
			return true
		}
	}
	return imageExtensions[strings.ToLower(path.Ext(clean))]
}
