package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpi-gardener/greenhouse/internal/alerts"
	"github.com/rpi-gardener/greenhouse/internal/retry"
)

// GmailBackend sends alert notifications over SMTP with STARTTLS, grounded
// on original_source/rpi/lib/notifications.py's GmailNotifier.
type GmailBackend struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
	Subject  string
	Timeout  time.Duration

	log zerolog.Logger
}

// NewGmailBackend builds a GmailBackend. host/port default to Gmail's
// submission endpoint when empty/zero.
func NewGmailBackend(log zerolog.Logger, host string, port int, username, password, from, to string) *GmailBackend {
	if host == "" {
		host = "smtp.gmail.com"
	}
	if port == 0 {
		port = 587
	}
	return &GmailBackend{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		To:       to,
		Subject:  "Greenhouse Alert",
		Timeout:  10 * time.Second,
		log:      log.With().Str("backend", "gmail").Logger(),
	}
}

func (g *GmailBackend) Name() string { return "Email" }

func (g *GmailBackend) Send(ctx context.Context, violation alerts.ThresholdViolation) error {
	return retry.Do(ctx, g.log, retry.Options{
		Name:           "Email",
		MaxRetries:     3,
		InitialBackoff: 2 * time.Second,
		Retryable:      gmailRetryable,
	}, func(ctx context.Context) error {
		if err := g.send(violation); err != nil {
			return err
		}
		g.log.Info().Str("sensor", violation.SensorName.String()).Msg("sent email notification")
		return nil
	})
}

// gmailRetryable treats SMTP 4xx responses (authentication rejection,
// malformed command, mailbox unavailable) as terminal and only 5xx server
// errors as transient (spec.md §4.8 "Non-retryable errors"). Dial/network
// errors and anything that isn't a protocol response stay retryable.
func gmailRetryable(err error) bool {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code >= 500
	}
	return true
}

func (g *GmailBackend) send(violation alerts.ThresholdViolation) error {
	addr := fmt.Sprintf("%s:%d", g.Host, g.Port)
	conn, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.StartTLS(&tls.Config{ServerName: g.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return err
	}
	if err := conn.Auth(smtp.PlainAuth("", g.Username, g.Password, g.Host)); err != nil {
		return err
	}
	if err := conn.Mail(g.From); err != nil {
		return err
	}
	if err := conn.Rcpt(g.To); err != nil {
		return err
	}

	wc, err := conn.Data()
	if err != nil {
		return err
	}
	defer wc.Close()

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		g.From, g.To, g.Subject, FormatMessage(violation))
	if _, err := wc.Write([]byte(body)); err != nil {
		return err
	}
	return nil
}
