package mail_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/jrsteele09/go-auth-session-server/mail"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type mailConfig struct {
	apiKey, apiURL, from, host, project string
}

func (m mailConfig) GetEmailAPIKey() string { return m.apiKey }
func (m mailConfig) GetEmailAPIURL() string { return m.apiURL }
func (m mailConfig) GetFromEmail() string   { return m.from }
func (m mailConfig) GetClientHost() string  { return m.host }
func (m mailConfig) GetProjectName() string { return m.project }
func (m mailConfig) IsMailConfigured() bool {
	return m.apiKey != "" && m.from != "" && m.host != ""
}

type capturedRequest struct {
	Auth string
	Path string
	Body map[string]any
}

func newProvider(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		captured = append(captured, capturedRequest{Auth: r.Header.Get("Authorization"), Path: r.URL.Path, Body: body})
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestLinkBuilder(t *testing.T) {
	links := mail.NewLinkBuilder("https://app.example.com/")
	require.Equal(t, "https://app.example.com/verify-email?token=abc", links.Verification("abc"))
	require.Equal(t, "https://app.example.com/reset-password?token=abc", links.PasswordReset("abc"))
}

func TestResendClient_SendVerification(t *testing.T) {
	srv, captured := newProvider(t, http.StatusOK)
	client, err := mail.NewResendClient("re_key", "noreply@x.com", "Acme", mail.NewLinkBuilder("https://app.example.com"), mail.WithBaseURL(srv.URL))
	require.NoError(t, err)

	require.NoError(t, client.SendVerification(context.Background(), "jane@x.com", "tok123"))

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	require.Equal(t, "Bearer re_key", req.Auth)
	require.Equal(t, "/emails", req.Path)
	require.Equal(t, "Acme <noreply@x.com>", req.Body["from"])
	require.Equal(t, []any{"jane@x.com"}, req.Body["to"])
	require.Contains(t, req.Body["subject"], "Acme")
	require.Contains(t, req.Body["html"], "https://app.example.com/verify-email?token=tok123")
	require.Equal(t, map[string]any{"X-Priority": "1 (Highest)", "Importance": "high"}, req.Body["headers"])
}

func TestResendClient_SendPasswordReset(t *testing.T) {
	srv, captured := newProvider(t, http.StatusOK)
	client, err := mail.NewResendClient("re_key", "noreply@x.com", "Acme", mail.NewLinkBuilder("https://app.example.com"), mail.WithBaseURL(srv.URL))
	require.NoError(t, err)

	require.NoError(t, client.SendPasswordReset(context.Background(), "jane@x.com", "tok456"))
	require.Contains(t, (*captured)[0].Body["html"], "https://app.example.com/reset-password?token=tok456")
}

func TestResendClient_ProviderError(t *testing.T) {
	srv, _ := newProvider(t, http.StatusUnprocessableEntity)
	client, err := mail.NewResendClient("re_key", "noreply@x.com", "Acme", mail.NewLinkBuilder("https://app.example.com"), mail.WithBaseURL(srv.URL))
	require.NoError(t, err)

	err = client.SendVerification(context.Background(), "jane@x.com", "tok")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 422")
}

func TestNewResendClient_RequiresCredentials(t *testing.T) {
	_, err := mail.NewResendClient("", "noreply@x.com", "Acme", mail.NewLinkBuilder("https://app.example.com"))
	require.Error(t, err)
}

func TestNewSender(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("configured", func(t *testing.T) {
		sender, err := mail.NewSender(mailConfig{apiKey: "k", from: "f@x.com", host: "http://h", project: "P"}, false, logger)
		require.NoError(t, err)
		require.IsType(t, &mail.ResendClient{}, sender)
	})

	t.Run("development falls back to log sender", func(t *testing.T) {
		sender, err := mail.NewSender(mailConfig{host: "http://h"}, true, logger)
		require.NoError(t, err)
		require.IsType(t, &mail.LogSender{}, sender)
	})

	t.Run("missing credentials outside development", func(t *testing.T) {
		_, err := mail.NewSender(mailConfig{host: "http://h"}, false, logger)
		require.ErrorIs(t, err, apperrors.ErrMailConfig)
	})
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	sender := mail.NewLogSender(mail.NewLinkBuilder("http://localhost:5173"), zerolog.New(&buf))

	require.NoError(t, sender.SendPasswordReset(context.Background(), "jane@x.com", "tok"))
	require.Contains(t, buf.String(), "http://localhost:5173/reset-password?token=tok")
	require.Contains(t, buf.String(), "password_reset")
}
