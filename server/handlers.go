package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-session-server/auth"
	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
)

type messageResponse struct {
	Message string `json:"message"`
}

// Messages returned by flows that never reveal whether an address is registered
const (
	MessageLoggedOut        = "Logged out"
	MessageLoggedOutAll     = "Logged out of all sessions"
	MessageVerificationSent = "If the account exists and is unverified, a verification email has been sent"
	MessageResetSent        = "If the account exists, a password reset email has been sent"
	MessagePasswordReset    = "Password has been reset"
	MessagePasswordChanged  = "Password has been changed"
)

const queryParamToken = "token"

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input auth.RegisterInput
		if err := decodeJSON(w, r, &input); err != nil {
			s.writeError(w, err)
			return
		}
		result, err := s.auth.Register(r.Context(), input)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusCreated, result)
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input auth.LoginInput
		if err := decodeJSON(w, r, &input); err != nil {
			s.writeError(w, err)
			return
		}
		result, err := s.auth.Login(r.Context(), input)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, result)
	}
}

// RefreshHandler rotates a session. Every rotation failure is reported as INVALID_REFRESH_TOKEN.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input auth.TokenInput
		if err := decodeJSON(w, r, &input); err != nil {
			s.writeError(w, err)
			return
		}
		pair, err := s.auth.Refresh(r.Context(), input.RefreshToken)
		if err != nil {
			if auth.IsRefreshFailure(err) {
				err = apperrors.ErrInvalidRefreshToken
			}
			s.writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, pair)
	}
}

// LogoutHandler always succeeds, even for a missing or unknown token
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input auth.TokenInput
		if err := decodeJSON(w, r, &input); err == nil && input.RefreshToken != "" {
			s.auth.Logout(r.Context(), input.RefreshToken)
		}
		writeSuccess(w, http.StatusOK, messageResponse{Message: MessageLoggedOut})
	}
}

func (s *Server) LogoutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			s.writeError(w, apperrors.ErrUnauthorized)
			return
		}
		sessionID, _ := SessionIDFromContext(r.Context())
		if err := s.auth.LogoutAll(r.Context(), userID); err != nil {
			s.writeError(w, err)
			return
		}
		s.logger.Info().Str("userId", userID).Str("sessionId", sessionID).Msg("logged out of all sessions")
		writeSuccess(w, http.StatusOK, messageResponse{Message: MessageLoggedOutAll})
	}
}

func (s *Server) VerifyEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.auth.VerifyEmail(r.Context(), r.URL.Query().Get(queryParamToken))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, result)
	}
}

func (s *Server) ResendVerificationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input auth.EmailInput
		if err := decodeJSON(w, r, &input); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.auth.ResendVerificationEmail(r.Context(), input.Email); err != nil {
			s.writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, messageResponse{Message: MessageVerificationSent})
	}
}

func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input auth.EmailInput
		if err := decodeJSON(w, r, &input); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.auth.ForgotPassword(r.Context(), input.Email); err != nil {
			s.writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, messageResponse{Message: MessageResetSent})
	}
}

func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input auth.ResetPasswordInput
		if err := decodeJSON(w, r, &input); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.auth.ResetPassword(r.Context(), input); err != nil {
			s.writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, messageResponse{Message: MessagePasswordReset})
	}
}

func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			s.writeError(w, apperrors.ErrUnauthorized)
			return
		}
		var input auth.ChangePasswordInput
		if err := decodeJSON(w, r, &input); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.auth.ChangePassword(r.Context(), userID, input); err != nil {
			s.writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, messageResponse{Message: MessagePasswordChanged})
	}
}

// MeHandler returns the safe view of the signed in identity
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			s.writeError(w, apperrors.ErrUnauthorized)
			return
		}
		user, err := s.users.GetByID(r.Context(), userID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, user)
	}
}
