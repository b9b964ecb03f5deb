package users

import (
	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const DefaultSaltRounds = 10

// ErrPasswordTooLong is returned by Hash for passwords bcrypt cannot digest
var ErrPasswordTooLong = &apperrors.ValidationError{Fields: []apperrors.FieldError{
	{Field: "password", Message: "INVALID_PASSWORD_FORMAT"},
}}

// Hasher hashes and compares passwords
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(plain, digest string) bool
}

var _ Hasher = (*BcryptHasher)(nil)

type BcryptHasher struct {
	cost int
}

// NewBcryptHasher uses cost as the bcrypt work factor, falling back to DefaultSaltRounds
// when it is outside the range bcrypt accepts.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultSaltRounds
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plain string) (string, error) {
	digest, err := HashPassword(plain, h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", errors.Wrap(err, "[BcryptHasher.Hash]")
	}
	return digest, nil
}

func (h *BcryptHasher) Compare(plain, digest string) bool {
	if digest == "" {
		return false
	}
	return CheckPasswordHash(plain, digest)
}
