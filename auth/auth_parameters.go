package auth

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"` // Optional, at least 10 characters when given
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenInput carries a refresh token for refresh and logout.
type TokenInput struct {
	RefreshToken string `json:"refreshToken"`
}

// EmailInput is used by resend-verification and forgot-password.
type EmailInput struct {
	Email string `json:"email"`
}

// ResetPasswordInput pairs a reset token from an email link with the new password.
type ResetPasswordInput struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ChangePasswordInput is sent by a signed in user.
type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}
