package auth

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var otpNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func TestOTPIssuer_IssueAndVerify(t *testing.T) {
	issuer := NewOTPIssuer("signing-secret", 10*time.Minute)

	ch, err := issuer.Issue("owner@example.com", otpNow)
	require.NoError(t, err)

	n, err := strconv.Atoi(ch.Code)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 100000)
	assert.LessOrEqual(t, n, 999999)
	assert.True(t, otpNow.Add(10*time.Minute).Equal(ch.ExpiresAt))
	assert.NotContains(t, ch.Token, ch.Code)

	v, err := issuer.Verify(ch.Token, ch.Code, otpNow.Add(9*time.Minute))
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "owner@example.com", v.Email)
	assert.Equal(t, ch.ID, v.ID)
}

func TestOTPIssuer_CodesStayInRange(t *testing.T) {
	issuer := NewOTPIssuer("signing-secret", time.Minute)
	for i := 0; i < 200; i++ {
		ch, err := issuer.Issue("owner@example.com", otpNow)
		require.NoError(t, err)
		require.Len(t, ch.Code, 6)
		assert.NotEqual(t, byte('0'), ch.Code[0])
	}
}

func TestOTPIssuer_ExpiredAlwaysInvalid(t *testing.T) {
	issuer := NewOTPIssuer("signing-secret", 10*time.Minute)
	ch, err := issuer.Issue("owner@example.com", otpNow)
	require.NoError(t, err)

	for _, code := range []string{ch.Code, "000000", ""} {
		v, err := issuer.Verify(ch.Token, code, ch.ExpiresAt.Add(time.Millisecond))
		assert.False(t, v.Valid)
		assert.ErrorIs(t, err, ErrOTPExpired)
	}

	v, err := issuer.Verify(ch.Token, ch.Code, ch.ExpiresAt)
	require.NoError(t, err, "expiry instant itself is still valid")
	assert.True(t, v.Valid)
}

func TestOTPIssuer_WrongCode(t *testing.T) {
	issuer := NewOTPIssuer("signing-secret", 10*time.Minute)
	ch, err := issuer.Issue("owner@example.com", otpNow)
	require.NoError(t, err)

	wrong := "100000"
	if ch.Code == wrong {
		wrong = "100001"
	}
	v, err := issuer.Verify(ch.Token, wrong, otpNow)
	assert.False(t, v.Valid)
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestOTPIssuer_TamperedTokenInvalid(t *testing.T) {
	issuer := NewOTPIssuer("signing-secret", 10*time.Minute)
	ch, err := issuer.Issue("owner@example.com", otpNow)
	require.NoError(t, err)

	parts := strings.Split(ch.Token, ".")
	require.Len(t, parts, 3)

	for i := range parts {
		segment := []byte(parts[i])
		pos := len(segment) / 2
		if segment[pos] == 'A' {
			segment[pos] = 'B'
		} else {
			segment[pos] = 'A'
		}
		tampered := make([]string, 3)
		copy(tampered, parts)
		tampered[i] = string(segment)

		v, err := issuer.Verify(strings.Join(tampered, "."), ch.Code, otpNow)
		assert.False(t, v.Valid, "segment %d", i)
		assert.Error(t, err)
	}
}

func TestOTPIssuer_OtherSecretInvalid(t *testing.T) {
	ch, err := NewOTPIssuer("signing-secret", time.Minute).Issue("owner@example.com", otpNow)
	require.NoError(t, err)

	v, err := NewOTPIssuer("different-secret", time.Minute).Verify(ch.Token, ch.Code, otpNow)
	assert.False(t, v.Valid)
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestOTPIssuer_MalformedTokens(t *testing.T) {
	issuer := NewOTPIssuer("signing-secret", time.Minute)
	for _, tok := range []string{"", "garbage", "a.b.c", "....", "eyJhbGciOiJub25lIn0.e30."} {
		v, err := issuer.Verify(tok, "123456", otpNow)
		assert.False(t, v.Valid, tok)
		assert.ErrorIs(t, err, ErrInvalidOTP, tok)
	}
}

func TestOTPIssuer_RequiresSecret(t *testing.T) {
	_, err := NewOTPIssuer("", time.Minute).Issue("owner@example.com", otpNow)
	assert.Error(t, err)
}
