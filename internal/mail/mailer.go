// Package mail delivers one-time codes over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/miky-rola/signals-backend/internal/config"
)

// Sender delivers a one-time code to a recipient. ttl is the code's
// lifetime, quoted in the message body. Implementations must propagate
// delivery failures to the caller, not swallow them.
type Sender interface {
	SendCode(ctx context.Context, subject, code, recipient, username string, ttl time.Duration) error
}

const (
	dialTimeout    = 8 * time.Second
	sessionTimeout = 15 * time.Second
	senderName     = "Trading Signals"
)

// SMTPSender sends mail through a configured SMTP relay.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender constructs an SMTPSender.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// SendCode emails the code to the recipient. Failures are logged and
// returned.
func (s *SMTPSender) SendCode(_ context.Context, subject, code, recipient, username string, ttl time.Duration) error {
	if username == "" {
		username = "Friend"
	}
	fromName := s.cfg.FromName
	if fromName == "" {
		fromName = senderName
	}

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", fromName, s.cfg.Username),
		fmt.Sprintf("To: %s <%s>", username, recipient),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		codeBody(username, code, ttl),
	}, "\r\n")

	if errSend := s.send(recipient, []byte(msg)); errSend != nil {
		log.WithError(errSend).Errorf("failed to send email to %s", recipient)
		return fmt.Errorf("mail: send to %s: %w", recipient, errSend)
	}
	log.Infof("email sent to %s", recipient)
	return nil
}

// codeBody renders the plain-text message carrying the code.
func codeBody(username, code string, ttl time.Duration) string {
	minutes := int(ttl.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf(`Dear %s,

Thank you for joining our service. We are thrilled to have you on board!

Your account verification code is: %s

Your verification code will expire in %d minutes.

Best regards,
The Trading Signals Team`, username, code, minutes)
}

// send opens an SMTP session, authenticates, and submits the message.
// Port 465 uses implicit TLS; other ports negotiate STARTTLS when offered.
func (s *SMTPSender) send(recipient string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var conn net.Conn
	var errDial error
	if s.cfg.Port == 465 {
		dialer := &net.Dialer{Timeout: dialTimeout}
		conn, errDial = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	} else {
		conn, errDial = net.DialTimeout("tcp", addr, dialTimeout)
	}
	if errDial != nil {
		return errDial
	}
	_ = conn.SetDeadline(time.Now().Add(sessionTimeout))

	client, errClient := smtp.NewClient(conn, s.cfg.Host)
	if errClient != nil {
		_ = conn.Close()
		return errClient
	}
	defer func() { _ = client.Quit() }()

	if s.cfg.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if errTLS := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); errTLS != nil {
				return errTLS
			}
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if errAuth := client.Auth(auth); errAuth != nil {
			return errAuth
		}
	}

	if errFrom := client.Mail(s.cfg.Username); errFrom != nil {
		return errFrom
	}
	if errRcpt := client.Rcpt(recipient); errRcpt != nil {
		return errRcpt
	}
	writer, errData := client.Data()
	if errData != nil {
		return errData
	}
	if _, errWrite := writer.Write(msg); errWrite != nil {
		return errWrite
	}
	return writer.Close()
}
