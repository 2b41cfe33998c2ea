package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	verificationSubject = "Verify your Cloud Sentiment account"
	goodbyeSubject      = "Your Cloud Sentiment account has been deleted"
)

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridGateway delivers mail through the SendGrid v3 API.
type SendGridGateway struct {
	client  mailSender
	from    *mail.Email
	baseURL string
}

func NewSendGridGateway(apiKey, fromAddress, baseURL string) *SendGridGateway {
	return &SendGridGateway{
		client:  sendgrid.NewSendClient(apiKey),
		from:    mail.NewEmail("Cloud Sentiment", fromAddress),
		baseURL: baseURL,
	}
}

func (g *SendGridGateway) SendVerification(ctx context.Context, email, token string) error {
	link := VerificationURL(g.baseURL, token)

	plain := "Thank you for registering in Cloud Sentiment API.\n\nPlease verify your email: " + link
	html := `<p>Hi,</p>
<p>Thank you for registering in <b>Cloud Sentiment API</b>.</p>
<p>Please verify your email:</p>
<p><a href="` + link + `">Verify Email</a></p>`

	return g.send(ctx, email, verificationSubject, plain, html)
}

func (g *SendGridGateway) SendGoodbye(ctx context.Context, email string) error {
	plain := "Your Cloud Sentiment account and all of its files have been deleted."
	html := `<p>Hi,</p>
<p>Your <b>Cloud Sentiment API</b> account and all of its files have been deleted.</p>
<p>We are sorry to see you go.</p>`

	return g.send(ctx, email, goodbyeSubject, plain, html)
}

func (g *SendGridGateway) send(ctx context.Context, to, subject, plain, html string) error {
	msg := mail.NewSingleEmail(g.from, subject, mail.NewEmail("", to), plain, html)

	resp, err := g.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
