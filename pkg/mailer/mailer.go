package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/lakewatch/lakes-portal-api/pkg/config"
)

// Mailer delivers transactional portal mail (activation and password reset
// links) over SMTP.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New constructs a Mailer from SMTP configuration.
func New(cfg config.SMTPConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, logger: logger, send: smtp.SendMail}
}

// SendActivation mails the account activation link for the given uid/token pair.
func (m *Mailer) SendActivation(to, uid, token string) error {
	link := fmt.Sprintf("%s/activation/%s/%s", strings.TrimRight(m.cfg.PortalURL, "/"), uid, token)
	body := fmt.Sprintf("Welcome to the Lakes Data Portal.\r\n\r\nActivate your account:\r\n%s\r\n", link)
	return m.deliver(to, "Activate your Lakes Data Portal account", body)
}

// SendPasswordReset mails the password reset link for the given uid/token pair.
func (m *Mailer) SendPasswordReset(to, uid, token string) error {
	link := fmt.Sprintf("%s/password-reset/%s/%s", strings.TrimRight(m.cfg.PortalURL, "/"), uid, token)
	body := fmt.Sprintf("A password reset was requested for your account.\r\n\r\nReset your password:\r\n%s\r\n\r\nIf you did not request this, ignore this message.\r\n", link)
	return m.deliver(to, "Reset your Lakes Data Portal password", body)
}

func (m *Mailer) deliver(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := strings.Builder{}
	msg.WriteString(fmt.Sprintf("From: %s\r\n", m.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	if err := m.send(addr, auth, m.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	m.logger.Debug("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
