package web

// errors.go turns service errors into responses. The technical error is
// logged with the request and session ids; the client gets the mapped
// user message and its support code.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/workbench/internal/core"
	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/logging"
	"github.com/JonMunkholm/workbench/internal/recipe"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

// statusFor picks the HTTP status of err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNoDataset):
		return http.StatusConflict
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, dataset.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, dataset.ErrColumnNotFound):
		return http.StatusNotFound
	case errors.Is(err, dataset.ErrDecodeFailure),
		errors.Is(err, dataset.ErrEmptyFile),
		errors.Is(err, dataset.ErrMalformedFile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dataset.ErrInvalidSelection),
		errors.Is(err, dataset.ErrNoColumnsSelected),
		errors.Is(err, dataset.ErrEmptyColumn),
		errors.Is(err, dataset.ErrNotNumeric),
		errors.Is(err, dataset.ErrInvalidOption),
		errors.Is(err, dataset.ErrShapeMismatch),
		errors.Is(err, recipe.ErrNoSteps),
		errors.Is(err, core.ErrNoFile):
		return http.StatusBadRequest
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrTooManyLoads):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user-facing form.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	log := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", args...)
	} else {
		log.Warn("request rejected", args...)
	}

	writeJSON(w, status, ErrorResponse{Error: msg.Message, Action: msg.Action, Code: msg.Code})
}
