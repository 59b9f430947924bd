package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/simple-genealogy/pkg/domain"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes a plain error message.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// StatusForKind maps a domain error kind to an HTTP status.
func StatusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindGone:
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

// DomainError writes err using its domain kind and returns the status written. Errors
// without a kind become a generic 500.
func DomainError(w http.ResponseWriter, err error) int {
	var de *domain.Error
	if !errors.As(err, &de) {
		Error(w, http.StatusInternalServerError, "internal server error")
		return http.StatusInternalServerError
	}
	status := StatusForKind(de.Kind)
	JSON(w, status, ErrorResponse{Error: de.Error(), Code: string(de.Kind), Details: de.Details})
	return status
}

// Fail writes err like DomainError and logs it when it is an internal failure.
func Fail(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	if DomainError(w, err) == http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}
