package mail

import (
	"context"

	"github.com/rs/zerolog"
)

var _ Sender = (*LogSender)(nil)

// LogSender writes links to the log instead of sending them. Only used in development.
type LogSender struct {
	links  LinkBuilder
	logger zerolog.Logger
}

func NewLogSender(links LinkBuilder, logger zerolog.Logger) *LogSender {
	return &LogSender{links: links, logger: logger}
}

func (s *LogSender) SendVerification(_ context.Context, to, token string) error {
	s.logger.Info().Str("kind", string(KindVerification)).Str("to", to).Str("link", s.links.Verification(token)).Msg("email not sent")
	return nil
}

func (s *LogSender) SendPasswordReset(_ context.Context, to, token string) error {
	s.logger.Info().Str("kind", string(KindPasswordReset)).Str("to", to).Str("link", s.links.PasswordReset(token)).Msg("email not sent")
	return nil
}
