package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/HanjuJo/Latteh/pkg/utilities"
)

// sentinel errors for the failure kinds surfaced to API callers
var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = errors.New("insufficient points")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrAlreadyAccepted   = errors.New("answer already accepted")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConflict          = errors.New("conflict")
)

// Validation returns an ErrValidation carrying a caller-facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound naming the missing resource.
func NotFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

// Forbidden returns an ErrForbidden describing the denied action.
func Forbidden(action string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, action)
}

type kind struct {
	err    error
	status int
	code   string
}

var kinds = []kind{
	{ErrValidation, http.StatusBadRequest, "validation_error"},
	{ErrInsufficientFunds, http.StatusConflict, "insufficient_funds"},
	{ErrNotFound, http.StatusNotFound, "not_found"},
	{ErrForbidden, http.StatusForbidden, "forbidden"},
	{ErrAlreadyAccepted, http.StatusConflict, "already_accepted"},
	{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{ErrConflict, http.StatusConflict, "conflict"},
}

func lookup(err error) (kind, bool) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k, true
		}
	}
	return kind{}, false
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	if k, ok := lookup(err); ok {
		return k.status
	}
	return http.StatusInternalServerError
}

// Code maps err to a stable machine-readable code.
func Code(err error) string {
	if k, ok := lookup(err); ok {
		return k.code
	}
	return "internal_error"
}

// Write renders err as {"error", "code"}. Unknown errors are logged and
// reported with a generic message.
func Write(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	k, ok := lookup(err)
	if !ok {
		if logger != nil {
			logger.Errorw("request failed", "err", err)
		}
		utilities.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
			"code":  "internal_error",
		})
		return
	}
	if logger != nil {
		logger.Debugw("request rejected", "err", err, "code", k.code)
	}
	utilities.WriteJSON(w, k.status, map[string]string{"error": err.Error(), "code": k.code})
}
