package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/pkg/errors"
)

const (
	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
)

// Payload is the identity data bound into every issued token
type Payload struct {
	UserID    string
	SessionID string
	Role      string
}

// Claims is the decoded form of an access or refresh token.
type Claims struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Expiry returns the absolute expiry carried by the token
func (c *Claims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// Pair is an access token with its refresh token
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Manager issues and verifies access and refresh tokens. Access and refresh tokens are signed
// with different secrets so one can never be accepted as the other.
type Manager struct {
	accessSigner  Signer
	refreshSigner Signer
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	nowFunc       func() time.Time
}

type ManagerOption func(*Manager)

func WithAccessTokenExpiry(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.accessExpiry = d
		}
	}
}

func WithRefreshTokenExpiry(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.refreshExpiry = d
		}
	}
}

func WithNowFunc(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = nowFunc
	}
}

// NewManager creates a token manager. Both secrets are required.
func NewManager(accessSecret, refreshSecret string, options ...ManagerOption) (*Manager, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.Wrap(apperrors.ErrJWTConfig, "[NewManager] access and refresh secrets are required")
	}

	m := &Manager{
		accessSigner:  NewHMACSigner(accessSecret),
		refreshSigner: NewHMACSigner(refreshSecret),
		accessExpiry:  DefaultAccessTokenExpiry,
		refreshExpiry: DefaultRefreshTokenExpiry,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// RefreshTokenExpiry is the lifetime of a brand new session
func (m *Manager) RefreshTokenExpiry() time.Duration {
	return m.refreshExpiry
}

func (m *Manager) IssueAccess(p Payload) (string, error) {
	return m.issue(m.accessSigner, p, m.accessExpiry)
}

// IssueRefresh signs a refresh token that expires after ttl (the default expiry when ttl <= 0).
func (m *Manager) IssueRefresh(p Payload, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = m.refreshExpiry
	}
	return m.issue(m.refreshSigner, p, ttl)
}

// IssuePair issues an access token and a refresh token expiring at refreshExpiresAt.
func (m *Manager) IssuePair(p Payload, refreshExpiresAt time.Time) (Pair, error) {
	access, err := m.IssueAccess(p)
	if err != nil {
		return Pair{}, errors.Wrap(err, "[Manager.IssuePair] access")
	}
	ttl := refreshExpiresAt.Sub(m.nowFunc())
	if ttl <= 0 {
		return Pair{}, errors.Wrap(apperrors.ErrTokenExpired, "[Manager.IssuePair] refresh expiry in the past")
	}
	refresh, err := m.IssueRefresh(p, ttl)
	if err != nil {
		return Pair{}, errors.Wrap(err, "[Manager.IssuePair] refresh")
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *Manager) VerifyAccess(tokenStr string) (*Claims, error) {
	return m.verify(m.accessSigner, tokenStr)
}

func (m *Manager) VerifyRefresh(tokenStr string) (*Claims, error) {
	return m.verify(m.refreshSigner, tokenStr)
}

func (m *Manager) issue(signer Signer, p Payload, ttl time.Duration) (string, error) {
	now := m.nowFunc()
	claims := &Claims{
		UserID:    p.UserID,
		SessionID: p.SessionID,
		Role:      p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return signer.Sign(claims)
}

// verify fails closed: an expired token is ErrTokenExpired, anything else that is not a
// fully formed and correctly signed token is ErrInvalidToken.
func (m *Manager) verify(signer Signer, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, signer.GetVerificationKey,
		jwt.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}
