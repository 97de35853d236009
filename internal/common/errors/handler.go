// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	"net/http"
)

// ErrorHandler renders errors raised by API handlers as JSON responses.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

type errorBody struct {
	Error *StandardError `json:"error"`
}

// HandleHTTPError normalizes err and writes it with the status matching its code.
func (h *ErrorHandler) HandleHTTPError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := h.normalizeError(err)
	status := HTTPStatus(stdErr.Code)

	fields := map[string]interface{}{
		"method":        r.Method,
		"path":          r.URL.Path,
		"errorCode":     string(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
		"details":       stdErr.Details,
		"status":        status,
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields)
	} else {
		h.logger.Warn("request rejected", fields)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: stdErr})
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return newError(ErrCodeBackendUnavailable, "Request aborted", err.Error(), true, err)
	}
	return NewInternalError(err)
}

// HTTPStatus maps an error code to the API response status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed,
		ErrCodeRequiredFieldMissing,
		ErrCodeFormSchemaInvalid,
		ErrCodeUnsupportedQuestionType:
		return http.StatusUnprocessableEntity
	case ErrCodeStepTransitionInvalid, ErrCodeRequestCancelled:
		return http.StatusConflict
	case ErrCodeAuthenticationFailed, ErrCodeBackendUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeResourceNotFound:
		return http.StatusNotFound
	case ErrCodeBackendUnavailable, ErrCodeBackendRequestFailed, ErrCodeRankingUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
