package notification

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/tendant/simple-genealogy/pkg/genealogy"
)

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailService delivers invite emails over SMTP.
type EmailService struct {
	config EmailConfig
	send   sendFunc
}

func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config, send: smtp.SendMail}
}

// SendInviteEmail implements genealogy.InviteMailer.
func (s *EmailService) SendInviteEmail(ctx context.Context, msg genealogy.InviteEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inviter := msg.InviterName
	if inviter == "" {
		inviter = "A relative"
	}
	subject := fmt.Sprintf("%s invited you to join the family tree", inviter)

	note := ""
	if msg.Message != "" {
		note = fmt.Sprintf("<blockquote>%s</blockquote>", html.EscapeString(msg.Message))
	}
	body := fmt.Sprintf(`<html><body>
		<h2>You have been invited to a family tree</h2>
		<p>%s added you to their family tree as <strong>%s</strong>.</p>
		%s
		<p><a href="%s">Click here to accept the invitation</a></p>
		<p>Or copy this link to your browser: %s</p>
		<p>This link expires on %s.</p>
	</body></html>`,
		html.EscapeString(inviter),
		html.EscapeString(msg.PersonName),
		note,
		html.EscapeString(msg.URL),
		html.EscapeString(msg.URL),
		msg.ExpiresAt.UTC().Format("January 2, 2006 15:04 MST"),
	)
	return s.sendEmail(msg.To, subject, body)
}

func (s *EmailService) sendEmail(to, subject, body string) error {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		headerValue(from), headerValue(to), headerValue(subject), body)

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	if err := s.send(addr, auth, s.config.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

var headerBreaks = strings.NewReplacer("\r", " ", "\n", " ")

// headerValue keeps user-supplied text on a single header line.
func headerValue(s string) string {
	return headerBreaks.Replace(s)
}
