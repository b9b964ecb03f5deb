package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/jrsteele09/go-auth-session-server/internal/metrics"
	"github.com/jrsteele09/go-auth-session-server/mail"
	"github.com/jrsteele09/go-auth-session-server/opaquetokens"
	"github.com/jrsteele09/go-auth-session-server/sessions"
	"github.com/jrsteele09/go-auth-session-server/token"
	"github.com/jrsteele09/go-auth-session-server/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultEmailTimeout = 10 * time.Second

// AuthResult is returned by every flow that signs the caller in
type AuthResult struct {
	User   users.SafeUser `json:"user"`
	Tokens token.Pair     `json:"tokens"`
}

// Services holds the collaborators the orchestrator composes
type Services struct {
	Users      *users.Service        // Identity lookups and versioned mutations
	Sessions   *sessions.Service     // Refresh token rotation and revocation
	MailTokens *opaquetokens.Service // One-time email link tokens
	Mailer     mail.Sender           // Outbound email, always called in the background
}

// Service runs the authentication flows: register, login, refresh, logout, email verification
// and password reset.
type Service struct {
	services     Services
	tokens       *token.Manager
	validator    *Validator
	logger       zerolog.Logger
	emailTimeout time.Duration
	nowFunc      func() time.Time
	background   sync.WaitGroup
}

type ServiceOption func(*Service)

// WithNowFunc sets the clock used for session expiry. It must agree with the token manager's clock.
func WithNowFunc(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithEmailTimeout bounds each background email dispatch
func WithEmailTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.emailTimeout = d
		}
	}
}

func NewService(services Services, tokens *token.Manager, options ...ServiceOption) (*Service, error) {
	if services.Users == nil {
		return nil, errors.New("[NewService] users service is required")
	}
	if services.Sessions == nil {
		return nil, errors.New("[NewService] sessions service is required")
	}
	if services.MailTokens == nil {
		return nil, errors.New("[NewService] mail token service is required")
	}
	if services.Mailer == nil {
		return nil, errors.New("[NewService] mailer is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}

	s := &Service{
		services:     services,
		tokens:       tokens,
		validator:    NewValidator(),
		logger:       log.Logger,
		emailTimeout: defaultEmailTimeout,
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Register creates the identity, signs it in and sends the verification email in the background.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if err := s.validator.ValidateRegister(input); err != nil {
		return nil, err
	}

	user, err := s.services.Users.Create(ctx, users.CreateParams{
		Name:     input.Name,
		Email:    input.Email,
		Phone:    input.Phone,
		Password: input.Password,
	})
	if err != nil {
		return nil, err
	}

	result, err := s.newSession(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] session")
	}

	s.dispatch(mail.KindVerification, user, opaquetokens.TypeEmailVerification, s.services.Mailer.SendVerification)
	return result, nil
}

// Login checks the credentials of an ACTIVE identity and opens a new session.
func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	if err := s.validator.ValidateLogin(input); err != nil {
		return nil, err
	}

	user, err := s.services.Users.VerifyCredentials(ctx, input.Email, input.Password)
	if err != nil {
		return nil, err
	}
	result, err := s.newSession(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] session")
	}
	return result, nil
}

// Refresh rotates the session bound to refreshToken. The new pair keeps the session's original
// expiry, so refreshing never extends a session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*token.Pair, error) {
	if err := s.validator.ValidateToken("refreshToken", refreshToken); err != nil {
		return nil, err
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With().Str("userId", claims.UserID).Str("sessionId", claims.SessionID).Logger()

	user, err := s.services.Users.FindActive(ctx, claims.UserID)
	if err != nil {
		logger.Info().Err(err).Msg("refresh for identity that is no longer active")
		return nil, err
	}

	expiresAt := claims.Expiry()
	pair, err := s.tokens.IssuePair(payloadFor(user, claims.SessionID), expiresAt)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] issue")
	}

	if err := s.services.Sessions.Rotate(ctx, claims.UserID, claims.SessionID, refreshToken, pair.RefreshToken, expiresAt); err != nil {
		logger.Info().Err(err).Msg("refresh rejected")
		return nil, err
	}
	return &pair, nil
}

// Logout revokes the session behind refreshToken. It never fails: an unverifiable token or a
// store error is logged and swallowed.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.logger.Debug().Err(err).Msg("logout with unverifiable refresh token")
		return
	}
	if err := s.services.Sessions.RevokeOne(ctx, claims.UserID, claims.SessionID); err != nil {
		s.logger.Error().Err(err).Str("userId", claims.UserID).Str("sessionId", claims.SessionID).Msg("logout failed to revoke session")
	}
}

// LogoutAll revokes every session of userID.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if !s.services.Sessions.SupportsRevokeAll() {
		s.logger.Warn().Str("userId", userID).Msg("logout-all requested but the session store cannot revoke by user")
	}
	if err := s.services.Sessions.RevokeAllForUser(ctx, userID); err != nil {
		return errors.Wrap(err, "[Service.LogoutAll]")
	}
	return nil
}

// VerifyEmail consumes a verification token, marks the identity verified and signs it in.
func (s *Service) VerifyEmail(ctx context.Context, value string) (*AuthResult, error) {
	if err := s.validator.ValidateToken("token", value); err != nil {
		return nil, err
	}

	tok, err := s.services.MailTokens.VerifyAndConsume(ctx, value, opaquetokens.TypeEmailVerification)
	if err != nil {
		return nil, err
	}
	user, err := s.services.Users.VerifyAccount(ctx, tok.UserID, true)
	if err != nil {
		return nil, err
	}
	result, err := s.newSession(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.VerifyEmail] session")
	}
	return result, nil
}

// ResendVerificationEmail sends a fresh link to an unverified identity. The caller cannot tell
// whether the address exists; only malformed input is reported.
func (s *Service) ResendVerificationEmail(ctx context.Context, email string) error {
	if err := s.validator.ValidateEmail(email); err != nil {
		return err
	}

	user, found, err := s.services.Users.FindByEmail(ctx, email, users.StatusActive)
	if err != nil {
		s.logger.Error().Err(err).Msg("resend verification lookup failed")
		return nil
	}
	if !found || user.IsVerified {
		return nil
	}
	s.dispatch(mail.KindVerification, user, opaquetokens.TypeEmailVerification, s.services.Mailer.SendVerification)
	return nil
}

// ForgotPassword sends a reset link to an ACTIVE identity, with the same enumeration rules as
// ResendVerificationEmail.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if err := s.validator.ValidateEmail(email); err != nil {
		return err
	}

	user, found, err := s.services.Users.FindByEmail(ctx, email, users.StatusActive)
	if err != nil {
		s.logger.Error().Err(err).Msg("forgot password lookup failed")
		return nil
	}
	if !found {
		return nil
	}
	s.dispatch(mail.KindPasswordReset, user, opaquetokens.TypeResetPassword, s.services.Mailer.SendPasswordReset)
	return nil
}

// ResetPassword consumes a reset token and stores the new password. Every session of the identity
// is revoked afterwards.
func (s *Service) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if err := s.validator.ValidateResetPassword(input); err != nil {
		return err
	}

	tok, err := s.services.MailTokens.VerifyAndConsume(ctx, input.Token, opaquetokens.TypeResetPassword)
	if err != nil {
		return err
	}
	if _, err := s.services.Users.ResetPassword(ctx, tok.UserID, input.NewPassword); err != nil {
		return err
	}
	s.revokeAfterPasswordChange(ctx, tok.UserID)
	return nil
}

// ChangePassword replaces the password of a signed in identity and signs out every session.
func (s *Service) ChangePassword(ctx context.Context, userID string, input ChangePasswordInput) error {
	if err := s.validator.ValidateChangePassword(input); err != nil {
		return err
	}

	if _, err := s.services.Users.ChangePassword(ctx, userID, input.OldPassword, input.NewPassword); err != nil {
		return err
	}
	s.revokeAfterPasswordChange(ctx, userID)
	return nil
}

// Wait blocks until every background email dispatch has finished
func (s *Service) Wait() {
	s.background.Wait()
}

func (s *Service) revokeAfterPasswordChange(ctx context.Context, userID string) {
	if err := s.services.Sessions.RevokeAllForUser(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("userId", userID).Msg("failed to revoke sessions after password change")
	}
}

// newSession issues a token pair for a new session id and persists the session with the same expiry.
func (s *Service) newSession(ctx context.Context, user *users.User) (*AuthResult, error) {
	sessionID := uuid.New().String()
	expiresAt := s.nowFunc().Add(s.tokens.RefreshTokenExpiry())

	pair, err := s.tokens.IssuePair(payloadFor(user, sessionID), expiresAt)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.newSession] issue")
	}
	if _, err := s.services.Sessions.Create(ctx, user.ID, sessionID, pair.RefreshToken, expiresAt); err != nil {
		return nil, errors.Wrap(err, "[Service.newSession] store")
	}
	return &AuthResult{User: user.Safe(), Tokens: pair}, nil
}

// dispatch creates an opaque token and emails it on a goroutine detached from the request.
// Failures are logged and counted, never returned.
func (s *Service) dispatch(kind mail.Kind, user *users.User, tokenType opaquetokens.Type, send func(ctx context.Context, to, token string) error) {
	userID, email := user.ID, user.Email
	logger := s.logger.With().Str("kind", string(kind)).Str("userId", userID).Logger()

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.emailTimeout)
		defer cancel()

		value, err := s.services.MailTokens.Create(ctx, userID, email, tokenType)
		if err != nil {
			logger.Error().Err(err).Msg("failed to create email token")
			metrics.EmailsDispatched.WithLabelValues(string(kind), "failed").Inc()
			return
		}
		if err := send(ctx, email, value); err != nil {
			logger.Error().Err(err).Msg("failed to send email")
			metrics.EmailsDispatched.WithLabelValues(string(kind), "failed").Inc()
			return
		}
		metrics.EmailsDispatched.WithLabelValues(string(kind), "sent").Inc()
	}()
}

func payloadFor(user *users.User, sessionID string) token.Payload {
	return token.Payload{UserID: user.ID, SessionID: sessionID, Role: string(user.Role)}
}

// IsRefreshFailure reports whether err is one of the failures a refresh reports to clients as a
// single INVALID_REFRESH_TOKEN.
func IsRefreshFailure(err error) bool {
	for _, target := range []error{
		apperrors.ErrInvalidToken,
		apperrors.ErrTokenExpired,
		apperrors.ErrSessionInvalid,
		apperrors.ErrInvalidRefreshToken,
		apperrors.ErrTokenReused,
		apperrors.ErrUserNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
