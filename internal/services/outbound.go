package services

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/config"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/gmail"
)

// SMTPSender is the fallback transport used when no Gmail mailbox is
// connected. It cannot thread conversations, so replies sent through it
// carry only the locally generated Message-ID.
type SMTPSender struct {
	cfg *config.Config
}

// NewSMTPSender creates a sender from the configured SMTP settings
func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Configured reports whether SMTP credentials are present
func (s *SMTPSender) Configured() bool {
	return s.cfg.SMTPHost != "" && s.cfg.SMTPUser != "" && s.cfg.SMTPPassword != ""
}

// Send transmits an HTML message over SMTP with STARTTLS and returns the
// Message-ID it stamped on the mail
func (s *SMTPSender) Send(to, subject, htmlBody, inReplyTo, references string) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("smtp transport not configured")
	}

	from := s.cfg.SMTPUser
	messageID := gmail.NewMessageID(from)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	if inReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", inReplyTo)
	}
	if references != "" {
		fmt.Fprintf(&b, "References: %s\r\n", references)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(b.String())); err != nil {
		return "", err
	}
	return messageID, nil
}
