package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/logger"
	"github.com/utafrali/marketplace/pkg/validator"
)

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes {"data": v} with the given status code.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteError renders err as the standard error envelope. AppErrors keep
// their code and message; request validation failures become
// VALIDATION_ERROR with field details; anything else is reported as an
// opaque internal error and logged. Driver or collaborator text never
// reaches the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var (
		appErr *apperrors.AppError
		valErr *validator.ValidationError
		decErr *validator.DecodeError
	)
	switch {
	case errors.As(err, &appErr):
		if appErr.Status >= http.StatusInternalServerError {
			l.ErrorContext(r.Context(), "request failed",
				slog.String("code", appErr.Code),
				slog.String("error", err.Error()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
		}
		WriteJSON(w, appErr.Status, Response{
			Error: &ErrorResponse{Code: appErr.Code, Message: appErr.Message, RequestID: requestID},
		})
	case errors.As(err, &valErr):
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:      "VALIDATION_ERROR",
				Message:   "request validation failed",
				Fields:    valErr.Fields(),
				RequestID: requestID,
			},
		})
	case errors.As(err, &decErr):
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{Code: "VALIDATION_ERROR", Message: decErr.Error(), RequestID: requestID},
		})
	default:
		status := apperrors.HTTPStatus(err)
		code, message := "INTERNAL_ERROR", "an internal error occurred"
		switch status {
		case http.StatusNotFound:
			code, message = "NOT_FOUND", "resource not found"
		case http.StatusConflict:
			code, message = "ALREADY_EXISTS", "resource already exists"
		case http.StatusInternalServerError:
			l.ErrorContext(r.Context(), "internal error",
				slog.String("error", err.Error()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
		}
		WriteJSON(w, status, Response{
			Error: &ErrorResponse{Code: code, Message: message, RequestID: requestID},
		})
	}
}

// ParseUUID validates that param is a UUID. On failure it writes a 400
// VALIDATION_ERROR response and returns false so the caller can return early.
func ParseUUID(w http.ResponseWriter, param string) (string, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "invalid id: " + param,
			},
		})
		return "", false
	}
	return id.String(), true
}
