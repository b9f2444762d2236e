package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	otpMin = 100000
	otpMax = 999999
)

// OTPClaims is the signed payload handed back to the client. The code itself
// is never embedded, only a digest bound to the token id.
type OTPClaims struct {
	Email       string `json:"email"`
	Digest      string `json:"otp"`
	ExpiresAtMs int64  `json:"expiresAt"`
	jwt.RegisteredClaims
}

// Challenge is the result of issuing a passcode.
type Challenge struct {
	Code      string
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Verification is the outcome of checking a submitted code.
type Verification struct {
	Valid     bool
	Email     string
	ID        string
	ExpiresAt time.Time
}

// OTPIssuer mints and checks passcode tokens with an HMAC secret.
type OTPIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewOTPIssuer(secret string, ttl time.Duration) *OTPIssuer {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OTPIssuer{secret: []byte(secret), ttl: ttl}
}

// TTL returns how long issued codes stay valid.
func (i *OTPIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue generates a six-digit code for email and the token that binds them.
func (i *OTPIssuer) Issue(email string, now time.Time) (Challenge, error) {
	if len(i.secret) == 0 {
		return Challenge{}, errors.New("otp signing secret not configured")
	}

	code, err := generateCode()
	if err != nil {
		return Challenge{}, fmt.Errorf("generate otp: %w", err)
	}

	id := uuid.NewString()
	exp := now.Add(i.ttl)
	claims := OTPClaims{
		Email:       email,
		Digest:      i.digest(id, code),
		ExpiresAtMs: exp.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Challenge{}, fmt.Errorf("sign otp token: %w", err)
	}

	return Challenge{
		Code:      code,
		Token:     token,
		ID:        id,
		ExpiresAt: time.UnixMilli(exp.UnixMilli()),
	}, nil
}

// Verify checks signature, then expiry, then the code. Any failure yields an
// invalid result; the error names the reason for server-side logs only.
func (i *OTPIssuer) Verify(token, code string, now time.Time) (Verification, error) {
	if len(i.secret) == 0 || token == "" {
		return Verification{}, ErrInvalidOTP
	}

	var claims OTPClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !parsed.Valid {
		return Verification{}, ErrInvalidOTP
	}

	if now.UnixMilli() > claims.ExpiresAtMs {
		return Verification{}, ErrOTPExpired
	}

	code = strings.TrimSpace(code)
	if !hmac.Equal([]byte(claims.Digest), []byte(i.digest(claims.ID, code))) {
		return Verification{}, ErrInvalidOTP
	}

	return Verification{
		Valid:     true,
		Email:     claims.Email,
		ID:        claims.ID,
		ExpiresAt: time.UnixMilli(claims.ExpiresAtMs),
	}, nil
}

func (i *OTPIssuer) digest(id, code string) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(id))
	mac.Write([]byte{':'})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+otpMin), nil
}
