package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestAsAppError_ThroughWrapping(t *testing.T) {
	err := pkgerrors.Wrap(apperrors.ErrTokenReused, "[Service.Rotate] reuse")
	err = apperrors.Wrapf(err, "refresh for user %s", "u1")

	require.True(t, apperrors.Is(err, apperrors.ErrTokenReused))
	appErr := apperrors.AsAppError(err)
	require.Equal(t, "TOKEN_REUSED_DETECTION", appErr.Code)
	require.Equal(t, http.StatusUnauthorized, appErr.Status)
}

func TestAsAppError_Unknown(t *testing.T) {
	appErr := apperrors.AsAppError(stderrors.New("boom"))
	require.Equal(t, apperrors.ErrInternal, appErr)
}

func TestValidationError(t *testing.T) {
	err := &apperrors.ValidationError{Fields: []apperrors.FieldError{{Field: "email", Message: "INVALID_EMAIL_FORMAT"}}}

	require.True(t, apperrors.Is(err, apperrors.ErrValidation))
	require.Equal(t, http.StatusBadRequest, apperrors.AsAppError(err).Status)
}

func TestWrapf_Nil(t *testing.T) {
	require.NoError(t, apperrors.Wrapf(nil, "ignored"))
}
