package mailer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTPSender_RequiresTransport(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", User: "mailer@example.com", Pass: "pw"})
	require.NoError(t, err)
	assert.Equal(t, 587, s.cfg.Port)
	assert.Equal(t, "mailer@example.com", s.cfg.From)
}

func TestSMTPSender_TLSModeFollowsPort(t *testing.T) {
	for _, tc := range []struct {
		port     int
		implicit bool
	}{
		{port: 465, implicit: true},
		{port: 587, implicit: false},
		{port: 25, implicit: false},
	} {
		s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: tc.port, User: "mailer", Pass: "pw"})
		require.NoError(t, err)
		assert.Equal(t, tc.implicit, s.implicitTLS(), "port %d", tc.port)

		client, err := s.newClient()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("smtp.example.com:%d", tc.port), client.ServerAddr())
	}
}

func TestOTPBody(t *testing.T) {
	body := OTPBody("123456", 10*time.Minute)
	assert.Contains(t, body, "123456")
	assert.Contains(t, body, "10 minutes")

	assert.Contains(t, OTPBody("654321", 30*time.Second), "1 minute.")
}

func TestSendOTP(t *testing.T) {
	rec := &Recorder{}
	require.NoError(t, SendOTP(context.Background(), rec, "owner@example.com", "424242", 5*time.Minute))

	msg, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, "owner@example.com", msg.To)
	assert.Equal(t, OTPSubject, msg.Subject)
	assert.Contains(t, msg.Body, "424242")
}

func TestSendOTP_NotConfigured(t *testing.T) {
	assert.ErrorIs(t, SendOTP(context.Background(), nil, "owner@example.com", "1", time.Minute), ErrNotConfigured)
	assert.ErrorIs(t, SendOTP(context.Background(), &Recorder{}, "", "1", time.Minute), ErrNotConfigured)
}

func TestSendOTP_PropagatesFailure(t *testing.T) {
	boom := errors.New("relay down")
	rec := &Recorder{Err: boom}
	assert.ErrorIs(t, SendOTP(context.Background(), rec, "owner@example.com", "1", time.Minute), boom)
	assert.Empty(t, rec.Messages())
}
