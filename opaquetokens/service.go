package opaquetokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/jrsteele09/go-auth-session-server/internal/metrics"
	"github.com/pkg/errors"
)

// Service creates and consumes opaque email tokens.
type Service struct {
	repo    Repo
	expiry  time.Duration
	nowFunc func() time.Time
}

type ServiceOption func(*Service)

func WithNowFunc(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = nowFunc
	}
}

func WithExpiry(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.expiry = d
		}
	}
}

func NewService(repo Repo, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[NewService] opaque token repo is required")
	}
	s := &Service{
		repo:    repo,
		expiry:  DefaultExpiry,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Create persists a fresh random token for userID and returns its value.
func (s *Service) Create(ctx context.Context, userID, email string, tokenType Type) (string, error) {
	if !tokenType.Valid() {
		return "", errors.Errorf("[Service.Create] unknown token type %q", tokenType)
	}
	value, err := generateToken()
	if err != nil {
		return "", errors.Wrap(err, "[Service.Create] generate")
	}

	now := s.nowFunc()
	if err := s.repo.Create(ctx, &Token{
		Token:     value,
		UserID:    userID,
		Email:     email,
		Type:      tokenType,
		IsUsed:    false,
		ExpiresAt: now.Add(s.expiry),
		CreatedAt: now,
	}); err != nil {
		return "", errors.Wrap(err, "[Service.Create] store")
	}
	metrics.OpaqueTokens.WithLabelValues(string(tokenType), "created").Inc()
	return value, nil
}

// VerifyAndConsume validates the token and marks it used. Of any number of concurrent calls for
// the same token at most one succeeds; the rest fail as already used.
func (s *Service) VerifyAndConsume(ctx context.Context, value string, tokenType Type) (*Token, error) {
	tok, err := s.repo.FindByToken(ctx, value, tokenType)
	if errors.Is(err, ErrNotFound) {
		metrics.OpaqueTokens.WithLabelValues(string(tokenType), "invalid").Inc()
		return nil, apperrors.ErrInvalidOpaqueToken
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Service.VerifyAndConsume] find")
	}

	if tok.IsUsed {
		metrics.OpaqueTokens.WithLabelValues(string(tokenType), "used").Inc()
		return nil, alreadyUsedErr(tokenType)
	}
	if tok.ExpiresAt.Before(s.nowFunc()) {
		metrics.OpaqueTokens.WithLabelValues(string(tokenType), "expired").Inc()
		return nil, apperrors.ErrOpaqueTokenExpired
	}

	marked, err := s.repo.MarkUsed(ctx, value)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.VerifyAndConsume] mark used")
	}
	if !marked {
		metrics.OpaqueTokens.WithLabelValues(string(tokenType), "used").Inc()
		return nil, alreadyUsedErr(tokenType)
	}

	tok.IsUsed = true
	metrics.OpaqueTokens.WithLabelValues(string(tokenType), "consumed").Inc()
	return tok, nil
}

func alreadyUsedErr(tokenType Type) error {
	if tokenType == TypeEmailVerification {
		return apperrors.ErrAccountAlreadyVerified
	}
	return apperrors.ErrLinkAlreadyUsed
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
