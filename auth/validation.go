package auth

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
)

const (
	minNameLength     = 2
	minPasswordLength = 6
	minPhoneLength    = 10

	// bcrypt only accepts the first 72 bytes of a password
	maxPasswordBytes = 72
)

// Field failure messages returned to clients
const (
	InvalidNameFormat     = "INVALID_NAME_FORMAT"
	InvalidEmailFormat    = "INVALID_EMAIL_FORMAT"
	InvalidPasswordFormat = "INVALID_PASSWORD_FORMAT"
	InvalidPhoneFormat    = "INVALID_PHONE_FORMAT"
	InvalidRefreshToken   = "INVALID_REFRESH_TOKEN"
	InvalidOpaqueToken    = "INVALID_OPAQUE_TOKEN"
)

// Validator checks request inputs before any store is touched. Failures are returned as a
// *apperrors.ValidationError listing every invalid field.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) ValidateRegister(input RegisterInput) error {
	var fields fieldErrors
	if utf8.RuneCountInString(strings.TrimSpace(input.Name)) < minNameLength {
		fields.add("name", InvalidNameFormat)
	}
	if !validEmail(input.Email) {
		fields.add("email", InvalidEmailFormat)
	}
	if !validNewPassword(input.Password) {
		fields.add("password", InvalidPasswordFormat)
	}
	if input.Phone != "" && utf8.RuneCountInString(strings.TrimSpace(input.Phone)) < minPhoneLength {
		fields.add("phone", InvalidPhoneFormat)
	}
	return fields.err()
}

func (v *Validator) ValidateLogin(input LoginInput) error {
	var fields fieldErrors
	if !validEmail(input.Email) {
		fields.add("email", InvalidEmailFormat)
	}
	if input.Password == "" {
		fields.add("password", InvalidPasswordFormat)
	}
	return fields.err()
}

func (v *Validator) ValidateEmail(email string) error {
	var fields fieldErrors
	if !validEmail(email) {
		fields.add("email", InvalidEmailFormat)
	}
	return fields.err()
}

// ValidateToken requires a non-empty refresh token or opaque token under the given field name
func (v *Validator) ValidateToken(field, value string) error {
	var fields fieldErrors
	if strings.TrimSpace(value) == "" {
		msg := InvalidOpaqueToken
		if field == "refreshToken" {
			msg = InvalidRefreshToken
		}
		fields.add(field, msg)
	}
	return fields.err()
}

func (v *Validator) ValidateResetPassword(input ResetPasswordInput) error {
	var fields fieldErrors
	if strings.TrimSpace(input.Token) == "" {
		fields.add("token", InvalidOpaqueToken)
	}
	if !validNewPassword(input.NewPassword) {
		fields.add("newPassword", InvalidPasswordFormat)
	}
	return fields.err()
}

func (v *Validator) ValidateChangePassword(input ChangePasswordInput) error {
	var fields fieldErrors
	if input.OldPassword == "" {
		fields.add("oldPassword", InvalidPasswordFormat)
	}
	if !validNewPassword(input.NewPassword) {
		fields.add("newPassword", InvalidPasswordFormat)
	}
	return fields.err()
}

func validNewPassword(password string) bool {
	return utf8.RuneCountInString(password) >= minPasswordLength && len(password) <= maxPasswordBytes
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	_, domain, ok := strings.Cut(email, "@")
	return ok && strings.Contains(domain, ".")
}

type fieldErrors []apperrors.FieldError

func (f *fieldErrors) add(field, message string) {
	*f = append(*f, apperrors.FieldError{Field: field, Message: message})
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &apperrors.ValidationError{Fields: f}
}
