package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Modules reported in the error envelope
const (
	ModuleAuth    = "AUTH"
	ModuleSession = "SESSION"
	ModuleToken   = "TOKEN"
	ModuleMail    = "MAIL_TOKEN"
	ModuleUser    = "USER"
	ModuleConfig  = "CONFIG"
	ModuleServer  = "SERVER"
)

// AppError is an error with a stable machine readable code and the HTTP status it maps to.
// Sentinel values are compared with errors.Is, so wrapping them keeps their identity.
type AppError struct {
	Code   string
	Status int
	Module string
}

func (e *AppError) Error() string {
	return e.Code
}

// New creates a coded error
func New(module string, status int, code string) *AppError {
	return &AppError{Code: code, Status: status, Module: module}
}

var (
	// Authentication errors
	ErrInvalidCredentials = New(ModuleAuth, http.StatusUnauthorized, "INVALID_CREDENTIALS")
	ErrUnauthorized       = New(ModuleAuth, http.StatusUnauthorized, "UNAUTHORIZED")
	ErrMissingToken       = New(ModuleAuth, http.StatusUnauthorized, "UNAUTHORIZED_MISSING_TOKEN")
	ErrInvalidAccessToken = New(ModuleAuth, http.StatusUnauthorized, "UNAUTHORIZED_INVALID_TOKEN")

	// Token errors
	ErrInvalidToken = New(ModuleToken, http.StatusUnauthorized, "INVALID_TOKEN")
	ErrTokenExpired = New(ModuleToken, http.StatusUnauthorized, "TOKEN_EXPIRED")

	// Session errors
	ErrSessionInvalid      = New(ModuleSession, http.StatusUnauthorized, "SESSION_INVALID")
	ErrInvalidRefreshToken = New(ModuleSession, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN")
	ErrTokenReused         = New(ModuleSession, http.StatusUnauthorized, "TOKEN_REUSED_DETECTION")

	// Opaque (email link) token errors
	ErrInvalidOpaqueToken     = New(ModuleMail, http.StatusBadRequest, "INVALID_URL")
	ErrAccountAlreadyVerified = New(ModuleMail, http.StatusBadRequest, "ACCOUNT_ALREADY_VERIFIED")
	ErrLinkAlreadyUsed        = New(ModuleMail, http.StatusBadRequest, "LINK_ALREADY_USED")
	ErrOpaqueTokenExpired     = New(ModuleMail, http.StatusBadRequest, "URL_EXPIRED")

	// User errors
	ErrEmailAlreadyExists       = New(ModuleUser, http.StatusConflict, "EMAIL_ALREADY_EXISTS")
	ErrPhoneAlreadyExists       = New(ModuleUser, http.StatusConflict, "PHONE_ALREADY_EXISTS")
	ErrDataModifiedConcurrently = New(ModuleUser, http.StatusConflict, "USER_DATA_MODIFIED_CONCURRENTLY")
	ErrUserNotFound             = New(ModuleUser, http.StatusNotFound, "USER_NOT_FOUND")
	ErrInvalidOldPassword       = New(ModuleUser, http.StatusBadRequest, "INVALID_OLD_PASSWORD")

	// Configuration errors
	ErrConfiguration = New(ModuleConfig, http.StatusInternalServerError, "CONFIGURATION_ERROR")
	ErrJWTConfig     = New(ModuleConfig, http.StatusInternalServerError, "JWT_CONFIG_ERROR")
	ErrMailConfig    = New(ModuleConfig, http.StatusInternalServerError, "MAIL_CONFIG_ERROR")

	// General errors
	ErrValidation       = New(ModuleServer, http.StatusBadRequest, "VALIDATION_ERROR")
	ErrNotFound         = New(ModuleServer, http.StatusNotFound, "NOT_FOUND")
	ErrMethodNotAllowed = New(ModuleServer, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
	ErrTooManyRequests  = New(ModuleServer, http.StatusTooManyRequests, "TOO_MANY_REQUESTS")
	ErrInternal         = New(ModuleServer, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR")
)

// FieldError describes a single invalid request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries per-field failures and unwraps to ErrValidation
type ValidationError struct {
	Fields []FieldError
}

func (v *ValidationError) Error() string {
	return ErrValidation.Code
}

func (v *ValidationError) Unwrap() error {
	return ErrValidation
}

// AsAppError returns the first coded error in err's chain, falling back to ErrInternal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
