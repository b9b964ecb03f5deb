package users_test

import (
	"encoding/json"
	"strings"
	"testing"

	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/jrsteele09/go-auth-session-server/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSafe_NeverSerialisesPassword(t *testing.T) {
	u := &users.User{ID: "u1", Email: "jane@x.com", PasswordHash: "digest", Status: users.StatusActive}

	for _, v := range []any{u, u.Safe()} {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		require.NotContains(t, string(b), "password")
		require.NotContains(t, string(b), "digest")
	}
}

func TestBcryptHasher(t *testing.T) {
	h := users.NewBcryptHasher(bcrypt.MinCost)

	digest, err := h.Hash("secret123")
	require.NoError(t, err)
	require.True(t, h.Compare("secret123", digest))
	require.False(t, h.Compare("secret124", digest))
	require.False(t, h.Compare("secret123", ""))

	t.Run("longer than bcrypt accepts", func(t *testing.T) {
		_, err := h.Hash(strings.Repeat("a", 80))
		require.ErrorIs(t, err, users.ErrPasswordTooLong)
		require.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("out of range cost falls back to default", func(t *testing.T) {
		digest, err := users.NewBcryptHasher(0).Hash("secret123")
		require.NoError(t, err)
		cost, err := bcrypt.Cost([]byte(digest))
		require.NoError(t, err)
		require.Equal(t, users.DefaultSaltRounds, cost)
	})
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "jane@x.com", users.NormalizeEmail("  JaNe@X.Com\t"))
}
