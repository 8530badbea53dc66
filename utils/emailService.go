package utils

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"certportal/config"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const senderName = "NCIT Certificate Portal"

// Mailer delivers one HTML message.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

// NewMailer picks the delivery backend named by MAIL_PROVIDER.
func NewMailer(cfg *config.Config, log *slog.Logger) (Mailer, error) {
	switch cfg.MailProvider {
	case "smtp":
		return &SMTPMailer{Host: cfg.SMTPHost, Port: cfg.SMTPPort, From: cfg.EmailSender, Password: cfg.Password}, nil
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid mail provider")
		}
		return NewSendGridMailer(cfg.SendGridAPIKey, cfg.EmailSender), nil
	case "log", "":
		return &LogMailer{Log: log}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}
}

type SMTPMailer struct {
	Host     string
	Port     string
	From     string
	Password string // app password
}

func (m *SMTPMailer) Send(_ context.Context, to []string, subject, htmlBody string) error {
	auth := smtp.PlainAuth("", m.From, m.Password, m.Host)
	return smtp.SendMail(m.Host+":"+m.Port, auth, m.From, to, smtpMessage(m.From, to, subject, htmlBody))
}

func smtpMessage(from string, to []string, subject, htmlBody string) []byte {
	// MIME basics
	msg := "MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n"
	msg += fmt.Sprintf("From: %s <%s>\r\n", senderName, headerValue(from))
	msg += fmt.Sprintf("To: %s\r\n", headerValue(strings.Join(to, ",")))
	msg += fmt.Sprintf("Subject: %s\r\n\r\n", headerValue(subject))
	msg += htmlBody
	return []byte(msg)
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// headerValue keeps user text on a single header line.
func headerValue(s string) string {
	return headerBreaks.Replace(s)
}

type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(apiKey, from string) *SendGridMailer {
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey), from: mail.NewEmail(senderName, from)}
}

func (m *SendGridMailer) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	for _, addr := range to {
		msg := mail.NewSingleEmail(m.from, headerValue(subject), mail.NewEmail("", addr), "", htmlBody)
		resp, err := m.client.SendWithContext(ctx, msg)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
		}
	}
	return nil
}

// LogMailer only logs. Used in development and tests.
type LogMailer struct {
	Log *slog.Logger
}

func (m *LogMailer) Send(_ context.Context, to []string, subject, _ string) error {
	m.Log.Info("email not sent, log mail provider", "to", to, "subject", subject)
	return nil
}

func getEmailTemplate(title string, bodyContent string) string {
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #F6F6F6; margin: 0; padding: 0; }
			.container { max-width: 600px; margin: 40px auto; background: #FFFFFF; border-radius: 8px; overflow: hidden; }
			.header { background-color: #0B3D91; padding: 24px; text-align: center; }
			.header h1 { color: #FFFFFF; margin: 0; font-size: 22px; }
			.content { padding: 32px 28px; color: #1F2937; line-height: 1.6; }
			.code { text-align: center; color: #0B3D91; font-size: 36px; letter-spacing: 6px; margin: 20px 0; }
			.info-box { background: #EEF2FF; padding: 15px; border-radius: 4px; border-left: 4px solid #0B3D91; margin: 20px 0; }
			.btn { display: inline-block; padding: 12px 24px; background-color: #0B3D91; color: #FFFFFF; text-decoration: none; border-radius: 4px; }
			.footer { background-color: #F6F6F6; padding: 16px; text-align: center; font-size: 12px; color: #6B7280; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header">
				<h1>%s</h1>
			</div>
			<div class="content">
				<h2>%s</h2>
				%s
			</div>
			<div class="footer">
				This is an automated message. Please do not reply.
			</div>
		</div>
	</body>
	</html>
	`, senderName, title, bodyContent)
}
