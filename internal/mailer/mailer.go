// Package mailer delivers one-time passcodes by e-mail.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned when the SMTP transport or recipient is unset.
var ErrNotConfigured = errors.New("email service not configured")

// Sender delivers a plain-text message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig describes the outbound transport.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// SMTPSender sends through an authenticated SMTP relay with mandatory TLS:
// STARTTLS on submission ports, implicit TLS on 465.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Pass == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := s.newClient()
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// implicitTLSPort is the SMTPS port, where TLS starts before the SMTP
// greeting instead of through STARTTLS.
const implicitTLSPort = 465

func (s *SMTPSender) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.User),
		mail.WithPassword(s.cfg.Pass),
		mail.WithTimeout(15 * time.Second),
	}
	if s.implicitTLS() {
		opts = append(opts, mail.WithSSLPort(false))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return mail.NewClient(s.cfg.Host, opts...)
}

func (s *SMTPSender) implicitTLS() bool {
	return s.cfg.Port == implicitTLSPort
}

// OTPSubject is the subject line of passcode mails.
const OTPSubject = "Your access code"

// OTPBody renders the passcode mail.
func OTPBody(code string, ttl time.Duration) string {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("Your one-time access code is: %s\n\nIt expires in %d %s. If you did not request it, ignore this message.\n",
		code, minutes, unit)
}

// SendOTP mails code to the single configured recipient.
func SendOTP(ctx context.Context, s Sender, to, code string, ttl time.Duration) error {
	if s == nil || to == "" {
		return ErrNotConfigured
	}
	return s.Send(ctx, to, OTPSubject, OTPBody(code, ttl))
}
