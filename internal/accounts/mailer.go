package accounts

import (
	"context"
	"net/url"
	"strings"

	"skills-backend/internal/shared/telemetry"
)

// Mailer delivers account lifecycle emails.
type Mailer interface {
	SendVerification(ctx context.Context, email, link string) error
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogMailer writes mail events to the structured log instead of sending mail.
// The token query is stripped unless RevealTokens is set, which only dev
// environments do.
type LogMailer struct {
	RevealTokens bool
}

func (m LogMailer) SendVerification(_ context.Context, email, link string) error {
	telemetry.Info("mail.verification", map[string]any{"email": email, "link": m.loggable(link)})
	return nil
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, link string) error {
	telemetry.Info("mail.password_reset", map[string]any{"email": email, "link": m.loggable(link)})
	return nil
}

func (m LogMailer) loggable(link string) string {
	if m.RevealTokens {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		return "[redacted]"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func buildLink(baseURL, path, token string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return base + path + "?token=" + url.QueryEscape(token)
}
