package utils

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"
)

const sendTimeout = 30 * time.Second

// Notifier sends portal emails in the background. Delivery failures are
// logged and never reach the caller.
type Notifier struct {
	mailer Mailer
	log    *slog.Logger
	wg     sync.WaitGroup
}

func NewNotifier(m Mailer, log *slog.Logger) *Notifier {
	return &Notifier{mailer: m, log: log}
}

func (n *Notifier) VerificationCode(to, name, code string, ttl time.Duration) {
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Your verification code is:</p>
		<div class="code">%s</div>
		<p>This code will expire in %d minutes.</p>
	`, html.EscapeString(name), code, int(ttl.Minutes()))

	n.send(to, "Email Verification Code", getEmailTemplate("Email Verification", body))
}

func (n *Notifier) PasswordReset(to, name, link string, ttl time.Duration) {
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Please click the following link to reset your password:</p>
		<a class="btn" href="%s" clicktracking=off>Reset password</a>
		<p>This link will expire in %d minutes.</p>
	`, html.EscapeString(name), html.EscapeString(link), int(ttl.Minutes()))

	n.send(to, "Password Reset Request", getEmailTemplate("Password Reset Request", body))
}

func (n *Notifier) CertificateIssued(to, name, title, proofURL string) {
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Your request <strong>%s</strong> has been approved and the certificate has been issued.</p>
		<div class="info-box">
			<a href="%s">View your certificate</a>
		</div>
	`, html.EscapeString(name), html.EscapeString(title), html.EscapeString(proofURL))

	n.send(to, "Certificate Issued: "+title, getEmailTemplate("Certificate Issued", body))
}

func (n *Notifier) CertificateRejected(to, name, title, reason string) {
	body := fmt.Sprintf(`
		<p>Dear %s,</p>
		<p>Your request <strong>%s</strong> was rejected.</p>
		<div class="info-box">
			<strong>Reason:</strong> %s
		</div>
		<p>You can edit the request and submit it again.</p>
	`, html.EscapeString(name), html.EscapeString(title), html.EscapeString(reason))

	n.send(to, "Certificate Request Rejected: "+title, getEmailTemplate("Request Rejected", body))
}

// Wait blocks until queued emails have been attempted.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) send(to, subject, body string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := n.mailer.Send(ctx, []string{to}, subject, body); err != nil {
			n.log.Error("email send failed", "to", to, "subject", subject, "err", err)
			return
		}
		n.log.Info("email sent", "to", to, "subject", subject)
	}()
}
