package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
)

const maxJSONBytes = 10 << 20

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decodeJSON reads a JSON body into dst and validates its struct tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperr.ErrTooLarge
		}
		return fmt.Errorf("%w: invalid JSON body", apperr.ErrInvalidInput)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}

// statusOf maps a service error to its HTTP status and client message.
// Unclassified errors are backend failures; their message is passed through.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "checksum mismatch"
	case errors.Is(err, apperr.ErrAlreadyExists):
		return http.StatusConflict, "already exists"
	case errors.Is(err, apperr.ErrLocked):
		return http.StatusLocked, apperr.ErrLocked.Error()
	case errors.Is(err, apperr.ErrWrongPassword):
		return http.StatusForbidden, apperr.ErrWrongPassword.Error()
	case errors.Is(err, apperr.ErrPasswordRequired), errors.Is(err, apperr.ErrPasswordMismatch),
		errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, apperr.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, apperr.ErrTooLarge.Error()
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// writeError writes err as a JSON error body. Server-side failures are
// logged with attrs.
func writeError(w http.ResponseWriter, op string, err error, attrs ...any) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
	}
	writeJSON(w, status, errorBody(msg))
}
