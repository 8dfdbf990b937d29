package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Mailer composes the application's messages and hands them to a Sender.
type Mailer struct {
	sender        Sender
	clientBaseURL string
}

func NewMailer(sender Sender, clientBaseURL string) *Mailer {
	return &Mailer{sender: sender, clientBaseURL: strings.TrimRight(clientBaseURL, "/")}
}

// ResetURL is the client page that accepts a password reset token.
func (m *Mailer) ResetURL(token string) string {
	return m.clientBaseURL + "/reset-password?token=" + url.QueryEscape(token)
}

// VerifyURL is the client page that confirms an email address.
func (m *Mailer) VerifyURL(token string) string {
	return m.clientBaseURL + "/verify-email?token=" + url.QueryEscape(token)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, token string) error {
	body := fmt.Sprintf(`You requested a password reset for your Soundscape account.

[Click here to reset your password](%s)

Or paste this link into your browser: %s

The link expires in one hour. If you did not request this, you can ignore this email.
`, m.ResetURL(token), m.ResetURL(token))

	return m.sender.Send(ctx, Message{
		To:       to,
		Subject:  "Reset your Soundscape password",
		Markdown: body,
	})
}

func (m *Mailer) SendVerification(ctx context.Context, to, name, token string) error {
	greeting := "Hi"
	if name = strings.TrimSpace(name); name != "" {
		greeting = "Hi " + name
	}
	body := fmt.Sprintf(`%s,

Thanks for joining Soundscape. Please confirm your email address:

[Verify my email](%s)

If you did not create an account, you can ignore this email.
`, greeting, m.VerifyURL(token))

	return m.sender.Send(ctx, Message{
		To:       to,
		Subject:  "Verify your Soundscape email",
		Markdown: body,
	})
}
