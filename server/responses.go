package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/go-auth-session-server/internal/errors"
	"github.com/pkg/errors"
)

const (
	contentTypeJSON = "application/json"
	maxBodyBytes    = 1 << 20
)

type successEnvelope struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

type errorEnvelope struct {
	Status     string                 `json:"status"`
	StatusCode int                    `json:"statusCode"`
	Module     string                 `json:"module"`
	Message    string                 `json:"message"`
	Errors     []apperrors.FieldError `json:"errors,omitempty"`
	Stack      string                 `json:"stack,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successEnvelope{Status: "success", Data: data})
}

// writeError maps err to its coded envelope. Uncoded errors become INTERNAL_SERVER_ERROR and the
// cause is only exposed, as a stack, in development.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	appErr := apperrors.AsAppError(err)
	envelope := errorEnvelope{
		Status:     "error",
		StatusCode: appErr.Status,
		Module:     appErr.Module,
		Message:    appErr.Code,
	}

	var vErr *apperrors.ValidationError
	if errors.As(err, &vErr) {
		envelope.Errors = vErr.Fields
	}
	if appErr.Status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("code", appErr.Code).Msg("request failed")
	}
	if s.isDevelopment() {
		envelope.Stack = fmt.Sprintf("%+v", err)
	}
	writeJSON(w, appErr.Status, envelope)
}

// decodeJSON reads a JSON body into dst. A malformed body is a validation failure on "body".
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &apperrors.ValidationError{Fields: []apperrors.FieldError{{Field: "body", Message: "INVALID_JSON_BODY"}}}
	}
	return nil
}
