package auth_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/jrsteele09/go-auth-session-server/auth"
	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/stretchr/testify/require"
)

func requireFields(t *testing.T, err error, want map[string]string) {
	t.Helper()
	require.ErrorIs(t, err, apperrors.ErrValidation)

	var vErr *apperrors.ValidationError
	require.True(t, errors.As(err, &vErr))
	got := make(map[string]string, len(vErr.Fields))
	for _, f := range vErr.Fields {
		got[f.Field] = f.Message
	}
	require.Equal(t, want, got)
}

func TestValidator_ValidateRegister(t *testing.T) {
	v := auth.NewValidator()

	t.Run("valid", func(t *testing.T) {
		err := v.ValidateRegister(auth.RegisterInput{Name: "Jane", Email: "jane@x.com", Password: "secret123"})
		require.NoError(t, err)
	})

	t.Run("valid with phone", func(t *testing.T) {
		err := v.ValidateRegister(auth.RegisterInput{Name: "Jane", Email: "jane@x.com", Password: "secret123", Phone: "0123456789"})
		require.NoError(t, err)
	})

	t.Run("every field invalid", func(t *testing.T) {
		err := v.ValidateRegister(auth.RegisterInput{Name: " J ", Email: "jane", Password: "12345", Phone: "123"})
		requireFields(t, err, map[string]string{
			"name":     auth.InvalidNameFormat,
			"email":    auth.InvalidEmailFormat,
			"password": auth.InvalidPasswordFormat,
			"phone":    auth.InvalidPhoneFormat,
		})
	})
}

func TestValidator_ValidateLogin(t *testing.T) {
	v := auth.NewValidator()

	require.NoError(t, v.ValidateLogin(auth.LoginInput{Email: "jane@x.com", Password: "x"}))

	err := v.ValidateLogin(auth.LoginInput{Email: "Jane Doe <jane@x.com>"})
	requireFields(t, err, map[string]string{
		"email":    auth.InvalidEmailFormat,
		"password": auth.InvalidPasswordFormat,
	})
}

func TestValidator_ValidateEmail(t *testing.T) {
	v := auth.NewValidator()

	for _, email := range []string{"jane@x.com", " jane.doe+tag@mail.example.org "} {
		require.NoError(t, v.ValidateEmail(email), email)
	}
	for _, email := range []string{"", "jane", "jane@", "@x.com", "jane@localhost"} {
		require.ErrorIs(t, v.ValidateEmail(email), apperrors.ErrValidation, email)
	}
}

func TestValidator_ValidateToken(t *testing.T) {
	v := auth.NewValidator()

	require.NoError(t, v.ValidateToken("refreshToken", "abc"))
	requireFields(t, v.ValidateToken("refreshToken", " "), map[string]string{"refreshToken": auth.InvalidRefreshToken})
	requireFields(t, v.ValidateToken("token", ""), map[string]string{"token": auth.InvalidOpaqueToken})
}

func TestValidator_ValidatePasswords(t *testing.T) {
	v := auth.NewValidator()

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, v.ValidateResetPassword(auth.ResetPasswordInput{Token: "abc", NewPassword: "secret1"}))
		requireFields(t, v.ValidateResetPassword(auth.ResetPasswordInput{NewPassword: "short"}), map[string]string{
			"token":       auth.InvalidOpaqueToken,
			"newPassword": auth.InvalidPasswordFormat,
		})
	})

	t.Run("change", func(t *testing.T) {
		require.NoError(t, v.ValidateChangePassword(auth.ChangePasswordInput{OldPassword: "old", NewPassword: "secret1"}))
		requireFields(t, v.ValidateChangePassword(auth.ChangePasswordInput{NewPassword: "short"}), map[string]string{
			"oldPassword": auth.InvalidPasswordFormat,
			"newPassword": auth.InvalidPasswordFormat,
		})
	})
}

func TestValidator_PasswordByteLimit(t *testing.T) {
	v := auth.NewValidator()
	tooLong := strings.Repeat("a", 80)
	// 24 three-byte runes: 24 characters but 72 bytes
	atLimit := strings.Repeat("€", 24)
	// 25 of them are 75 bytes, over the limit even though only 25 characters
	multiByteTooLong := strings.Repeat("€", 25)

	t.Run("register", func(t *testing.T) {
		require.NoError(t, v.ValidateRegister(auth.RegisterInput{Name: "Jane", Email: "jane@x.com", Password: atLimit}))
		requireFields(t, v.ValidateRegister(auth.RegisterInput{Name: "Jane", Email: "jane@x.com", Password: tooLong}),
			map[string]string{"password": auth.InvalidPasswordFormat})
		requireFields(t, v.ValidateRegister(auth.RegisterInput{Name: "Jane", Email: "jane@x.com", Password: multiByteTooLong}),
			map[string]string{"password": auth.InvalidPasswordFormat})
	})

	t.Run("reset", func(t *testing.T) {
		requireFields(t, v.ValidateResetPassword(auth.ResetPasswordInput{Token: "abc", NewPassword: tooLong}),
			map[string]string{"newPassword": auth.InvalidPasswordFormat})
	})

	t.Run("change", func(t *testing.T) {
		requireFields(t, v.ValidateChangePassword(auth.ChangePasswordInput{OldPassword: "old", NewPassword: tooLong}),
			map[string]string{"newPassword": auth.InvalidPasswordFormat})
	})
}
