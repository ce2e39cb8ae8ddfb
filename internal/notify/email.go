package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

const sendgridMailEndpoint = "https://api.sendgrid.com/v3/mail/send"

// EmailSender sends one transactional email.
type EmailSender interface {
	Send(ctx context.Context, toEmail, subject, body string) error
}

// SendGridSender sends transactional email via the SendGrid v3 REST API.
type SendGridSender struct {
	apiKey    string
	fromEmail string
	fromName  string
	client    *http.Client
}

// NewSendGridSender creates a SendGrid email sender
func NewSendGridSender(apiKey, fromEmail, fromName string) *SendGridSender {
	return &SendGridSender{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		client:    http.DefaultClient,
	}
}

// Send sends a plain-text email to a single recipient
func (s *SendGridSender) Send(ctx context.Context, toEmail, subject, body string) error {
	payload := sgMailPayload{
		Personalizations: []sgPersonalization{{
			To: []sgAddress{{Email: toEmail}},
		}},
		From:    sgAddress{Email: s.fromEmail, Name: s.fromName},
		Subject: subject,
		Content: []sgContent{{Type: "text/plain", Value: body}},
	}

	encoded, err := json.Marshal(payload)

	if err != nil {
		return fmt.Errorf("failed to marshal SendGrid payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendgridMailEndpoint, bytes.NewReader(encoded))

	if err != nil {
		return fmt.Errorf("failed to create SendGrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)

	if err != nil {
		return fmt.Errorf("SendGrid request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SendGrid returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// SendGrid v3 Mail Send API payload types.
type sgMailPayload struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// LogEmailSender logs instead of sending. Used when no SendGrid key is
// configured, so local environments still show what would have gone out.
type LogEmailSender struct {
	logger logger.Logger
}

// NewLogEmailSender creates a log-only email sender
func NewLogEmailSender(logger logger.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

// Send logs the email instead of sending it
func (s *LogEmailSender) Send(ctx context.Context, toEmail, subject, body string) error {
	s.logger.Info("Email (log-only sender)", "to", toEmail, "subject", subject)
	return nil
}
