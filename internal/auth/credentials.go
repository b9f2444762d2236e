package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// Credentials checks the single shared staging login.
type Credentials struct {
	username     string
	password     string
	passwordHash []byte
}

// NewCredentials builds a verifier. A non-empty bcrypt hash takes precedence
// over the plain password.
func NewCredentials(username, password, passwordHash string) *Credentials {
	c := &Credentials{username: username, password: password}
	if passwordHash != "" {
		c.passwordHash = []byte(passwordHash)
	}
	return c
}

// Verify reports whether the pair matches. It never says which half failed.
func (c *Credentials) Verify(username, password string) bool {
	if username == "" || password == "" || c.username == "" {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1

	var passOK bool
	if c.passwordHash != nil {
		passOK = bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password)) == nil
	} else {
		passOK = c.password != "" && subtle.ConstantTimeCompare([]byte(password), []byte(c.password)) == 1
	}

	return userOK && passOK
}

// HashPassword returns a bcrypt hash suitable for WEB_ACCESS_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
