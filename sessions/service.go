package sessions

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/jrsteele09/go-auth-session-server/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxRotateAttempts bounds how often a rotation re-reads the session after losing a
// compare-and-swap to a concurrent writer.
const maxRotateAttempts = 3

// Service implements refresh token rotation, reuse detection and revocation over a KeyValueStore.
type Service struct {
	store   KeyValueStore
	maxUsed int
	nowFunc func() time.Time
	logger  zerolog.Logger
}

type ServiceOption func(*Service)

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

// WithMaxUsedRefreshTokens overrides MaxUsedRefreshTokens
func WithMaxUsedRefreshTokens(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxUsed = n
		}
	}
}

func NewService(store KeyValueStore, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("[NewService] session store is required")
	}
	s := &Service{
		store:   store,
		maxUsed: MaxUsedRefreshTokens,
		nowFunc: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// SupportsRevokeAll reports whether the store can revoke every session of a user.
func (s *Service) SupportsRevokeAll() bool {
	_, ok := s.store.(PatternDeleter)
	return ok
}

// Create stores a fresh session with an empty rotation history.
func (s *Service) Create(ctx context.Context, userID, sessionID, refreshToken string, expiresAt time.Time) (*Session, error) {
	session := &Session{
		SessionID:         sessionID,
		UserID:            userID,
		RefreshToken:      refreshToken,
		RefreshTokensUsed: []string{},
		ExpiresAt:         expiresAt.UnixMilli(),
	}
	value, err := json.Marshal(session)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Create] marshal")
	}
	if err := s.store.Set(ctx, Key(userID, sessionID), value, s.ttlUntil(expiresAt)); err != nil {
		return nil, errors.Wrap(err, "[Service.Create] store")
	}
	metrics.SessionsCreated.Inc()
	return session, nil
}

// Get returns the live session or ErrSessionInvalid.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (*Session, error) {
	_, session, err := s.load(ctx, Key(userID, sessionID))
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Rotate replaces presented with newToken as the session's current refresh token.
//
// A presented token found in the rotation history is a replay of a superseded token: every
// session of the user is revoked and ErrTokenReused returned. Any other mismatch is
// ErrInvalidRefreshToken, and a missing session is ErrSessionInvalid.
func (s *Service) Rotate(ctx context.Context, userID, sessionID, presented, newToken string, expiresAt time.Time) error {
	key := Key(userID, sessionID)
	logger := s.logger.With().Str("userId", userID).Str("sessionId", sessionID).Logger()

	for attempt := 0; attempt < maxRotateAttempts; attempt++ {
		raw, session, err := s.load(ctx, key)
		if err != nil {
			if errors.Is(err, apperrors.ErrSessionInvalid) {
				logger.Info().Msg("refresh against missing session")
				metrics.SessionRotations.WithLabelValues("session_invalid").Inc()
			}
			return err
		}

		if slices.Contains(session.RefreshTokensUsed, presented) {
			logger.Warn().Msg("refresh token reuse detected, revoking all sessions")
			metrics.SessionRotations.WithLabelValues("reused").Inc()
			if err := s.RevokeAllForUser(ctx, userID); err != nil {
				logger.Error().Err(err).Msg("failed to revoke sessions after reuse")
			}
			return apperrors.ErrTokenReused
		}

		if session.RefreshToken != presented {
			logger.Info().Msg("refresh token does not match session")
			metrics.SessionRotations.WithLabelValues("invalid_token").Inc()
			return apperrors.ErrInvalidRefreshToken
		}

		session.RefreshTokensUsed = appendBounded(session.RefreshTokensUsed, presented, s.maxUsed)
		session.RefreshToken = newToken
		session.ExpiresAt = expiresAt.UnixMilli()

		value, err := json.Marshal(session)
		if err != nil {
			return errors.Wrap(err, "[Service.Rotate] marshal")
		}
		ttl := s.ttlUntil(expiresAt)

		cas, ok := s.store.(CompareAndSwapper)
		if !ok {
			if err := s.store.Set(ctx, key, value, ttl); err != nil {
				return errors.Wrap(err, "[Service.Rotate] store")
			}
			metrics.SessionRotations.WithLabelValues("ok").Inc()
			return nil
		}

		swapped, err := cas.SetIfUnchanged(ctx, key, raw, value, ttl)
		if err != nil {
			return errors.Wrap(err, "[Service.Rotate] compare and swap")
		}
		if swapped {
			metrics.SessionRotations.WithLabelValues("ok").Inc()
			return nil
		}
		logger.Debug().Int("attempt", attempt+1).Msg("session changed during rotation, re-reading")
	}

	metrics.SessionRotations.WithLabelValues("contention").Inc()
	return apperrors.ErrSessionInvalid
}

// RevokeOne deletes a single session. Revoking an absent session succeeds.
func (s *Service) RevokeOne(ctx context.Context, userID, sessionID string) error {
	if err := s.store.Delete(ctx, Key(userID, sessionID)); err != nil {
		return errors.Wrap(err, "[Service.RevokeOne] delete")
	}
	metrics.SessionsRevoked.WithLabelValues("one").Inc()
	return nil
}

// RevokeAllForUser deletes every session of the user. Without the PatternDeleter capability it
// logs and does nothing; callers needing the guarantee check SupportsRevokeAll.
func (s *Service) RevokeAllForUser(ctx context.Context, userID string) error {
	deleter, ok := s.store.(PatternDeleter)
	if !ok {
		s.logger.Warn().Str("userId", userID).Msg("session store cannot delete by pattern, sessions not revoked")
		return nil
	}
	n, err := deleter.DeleteByPattern(ctx, UserPattern(userID))
	if err != nil {
		return errors.Wrap(err, "[Service.RevokeAllForUser] delete by pattern")
	}
	s.logger.Info().Str("userId", userID).Int64("revoked", n).Msg("revoked all sessions")
	metrics.SessionsRevoked.WithLabelValues("all").Inc()
	return nil
}

func (s *Service) load(ctx context.Context, key string) ([]byte, *Session, error) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil, apperrors.ErrSessionInvalid
		}
		return nil, nil, errors.Wrap(err, "[Service.load] get")
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, nil, errors.Wrap(err, "[Service.load] unmarshal")
	}
	if session.ExpiresAt <= s.nowFunc().UnixMilli() {
		return nil, nil, apperrors.ErrSessionInvalid
	}
	return raw, &session, nil
}

// ttlUntil is max(1, floor((expiresAt-now)/1s)) seconds, keeping the store TTL in step with ExpiresAt.
func (s *Service) ttlUntil(expiresAt time.Time) time.Duration {
	secs := (expiresAt.UnixMilli() - s.nowFunc().UnixMilli()) / 1000
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}
