package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultBaseURL = "https://api.resend.com"
	// Headers sent with every message
	priorityHigh   = "1 (Highest)"
	importanceHigh = "high"
)

var _ Sender = (*ResendClient)(nil)

// ResendClient sends email through the Resend HTTP API.
type ResendClient struct {
	apiKey      string
	fromEmail   string
	projectName string
	baseURL     string
	links       LinkBuilder
	httpClient  *http.Client
}

type ResendOption func(*ResendClient)

func WithBaseURL(baseURL string) ResendOption {
	return func(c *ResendClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(client *http.Client) ResendOption {
	return func(c *ResendClient) {
		c.httpClient = client
	}
}

func NewResendClient(apiKey, fromEmail, projectName string, links LinkBuilder, options ...ResendOption) (*ResendClient, error) {
	if apiKey == "" || fromEmail == "" {
		return nil, errors.New("[NewResendClient] api key and from email are required")
	}
	if projectName == "" {
		projectName = "System"
	}
	c := &ResendClient{
		apiKey:      apiKey,
		fromEmail:   fromEmail,
		projectName: projectName,
		baseURL:     defaultBaseURL,
		links:       links,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

type sendEmailReq struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (c *ResendClient) SendVerification(ctx context.Context, to, token string) error {
	link := c.links.Verification(token)
	subject := fmt.Sprintf("Verify your %s account", c.projectName)
	body := fmt.Sprintf(`<p>Hi %s,</p><p>Confirm your email address to finish setting up your %s account.</p><p><a href="%s">Verify email</a></p><p>This link expires in 24 hours.</p>`,
		html.EscapeString(recipientName(to)), html.EscapeString(c.projectName), html.EscapeString(link))
	return c.send(ctx, to, subject, body)
}

func (c *ResendClient) SendPasswordReset(ctx context.Context, to, token string) error {
	link := c.links.PasswordReset(token)
	subject := fmt.Sprintf("Reset your %s password", c.projectName)
	body := fmt.Sprintf(`<p>Hi %s,</p><p>We received a request to reset your password.</p><p><a href="%s">Choose a new password</a></p><p>If this was not you, ignore this email. The link expires in 24 hours.</p>`,
		html.EscapeString(recipientName(to)), html.EscapeString(link))
	return c.send(ctx, to, subject, body)
}

func (c *ResendClient) send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return errors.New("[ResendClient.send] recipient is required")
	}
	reqBody := sendEmailReq{
		From:    fmt.Sprintf("%s <%s>", c.projectName, c.fromEmail),
		To:      []string{to},
		Subject: subject,
		HTML:    body,
		Headers: map[string]string{"X-Priority": priorityHigh, "Importance": importanceHigh},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return errors.Wrap(err, "[ResendClient.send] marshal")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(jsonBody))
	if err != nil {
		return errors.Wrap(err, "[ResendClient.send] new request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "[ResendClient.send] request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Errorf("[ResendClient.send] delivery failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
