package mail

import (
	"context"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-auth-session-server/internal/config"
	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Kind identifies the email being dispatched, used for logging and metrics
type Kind string

const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
)

// Sender delivers the out-of-band emails that carry opaque tokens.
type Sender interface {
	SendVerification(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
}

// NewSender returns the Resend client when mail is configured. In development an unconfigured
// provider falls back to a LogSender; anywhere else it is a configuration error.
func NewSender(cfg config.MailConfig, isDevelopment bool, logger zerolog.Logger) (Sender, error) {
	links := NewLinkBuilder(cfg.GetClientHost())
	if cfg.IsMailConfigured() {
		return NewResendClient(cfg.GetEmailAPIKey(), cfg.GetFromEmail(), cfg.GetProjectName(), links,
			WithBaseURL(cfg.GetEmailAPIURL()))
	}
	if isDevelopment {
		logger.Warn().Msg("mail provider not configured, links will be logged instead of sent")
		return NewLogSender(links, logger), nil
	}
	return nil, errors.Wrap(apperrors.ErrMailConfig, "[mail.NewSender] EMAIL_API_KEY, RESEND_FROM_EMAIL and CLIENT_HOST are required")
}

// LinkBuilder turns tokens into front-end URLs
type LinkBuilder struct {
	clientHost string
}

func NewLinkBuilder(clientHost string) LinkBuilder {
	return LinkBuilder{clientHost: strings.TrimRight(clientHost, "/")}
}

func (b LinkBuilder) Verification(token string) string {
	return b.clientHost + "/verify-email?token=" + url.QueryEscape(token)
}

func (b LinkBuilder) PasswordReset(token string) string {
	return b.clientHost + "/reset-password?token=" + url.QueryEscape(token)
}

// recipientName is the local part of the address, used as a greeting
func recipientName(address string) string {
	name, _, _ := strings.Cut(address, "@")
	return name
}
