// Package notify sends account lifecycle emails.
package notify

import (
	"context"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/cloudsentiment/internal/logging"
)

// Gateway delivers lifecycle notifications. Callers treat every error as
// non-fatal to the workflow that triggered it.
type Gateway interface {
	SendVerification(ctx context.Context, email, token string) error
	SendGoodbye(ctx context.Context, email string) error
}

// VerificationURL builds the link a user follows to verify email ownership.
func VerificationURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/auth/verify?token=" + url.QueryEscape(token)
}

// LogGateway writes notifications to the log instead of delivering them.
// It is used when no mail provider is configured.
type LogGateway struct {
	logger  logging.Logger
	baseURL string
}

func NewLogGateway(logger logging.Logger, baseURL string) *LogGateway {
	return &LogGateway{logger: logger, baseURL: baseURL}
}

func (g *LogGateway) SendVerification(ctx context.Context, email, token string) error {
	g.logger.Info(ctx, "mail provider not configured, verification link follows",
		"email", email, "link", VerificationURL(g.baseURL, token))
	return nil
}

func (g *LogGateway) SendGoodbye(ctx context.Context, email string) error {
	g.logger.Info(ctx, "mail provider not configured, goodbye email skipped", "email", email)
	return nil
}
