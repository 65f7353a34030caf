package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - Logged with full technical details and the request ID (server-side)
//   - Mapped via core.MapError to a user message with a support code
//   - Returned as JSON with an HTTP status derived from the error kind

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/JonMunkholm/schedimport/internal/core"
	"github.com/JonMunkholm/schedimport/internal/importer"
	"github.com/JonMunkholm/schedimport/internal/logging"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errMissingETag = errors.New("If-Match header is required")
	errNoFile      = errors.New("no file provided")
	errInvalidForm = errors.New("invalid multipart form")
	errInvalidID   = errors.New("invalid identifier")
	errInvalidBody = errors.New("invalid request body")
	errNoStreaming = errors.New("streaming not supported")
)

var requestErrorMsg = core.UserMessage{
	Message: "The request is invalid",
	Action:  "Check the request parameters and try again",
	Code:    "REQ001",
}

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code, MessageKey) and human-readable
// (Message, Action) fields.
type ErrorResponse struct {
	Error            string   `json:"error"`
	Message          string   `json:"message"`
	Action           string   `json:"action,omitempty"`
	Code             string   `json:"code"`
	MessageKey       string   `json:"messageKey,omitempty"`
	MessageArguments []string `json:"messageArguments,omitempty"`
}

// respondError logs err and writes it as an ErrorResponse.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse(err)

	logger := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", resp.Code,
	)
	if status >= http.StatusInternalServerError {
		logger.Error("request error")
	} else {
		logger.Warn("request rejected")
	}

	writeJSON(w, r, status, resp)
}

func errorResponse(err error) ErrorResponse {
	if isRequestError(err) {
		return ErrorResponse{
			Error:   err.Error(),
			Message: requestErrorMsg.Message,
			Action:  requestErrorMsg.Action,
			Code:    requestErrorMsg.Code,
		}
	}

	msg := core.MapError(err)
	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var pe *importer.PreconditionError
	if errors.As(err, &pe) {
		resp.MessageKey = pe.MessageKey
		resp.MessageArguments = pe.Args
	}
	return resp
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case isRequestError(err), importer.IsPrecondition(err), errors.Is(err, core.ErrEmptyFile):
		return http.StatusBadRequest
	case errors.Is(err, errMissingETag):
		return http.StatusPreconditionRequired
	case errors.Is(err, core.ErrVersionMismatch):
		return http.StatusConflict
	case errors.Is(err, core.ErrImportNotFound), errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyImports), errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// isRequestError reports whether err describes malformed client input.
func isRequestError(err error) bool {
	var verrs validation.Errors
	var verr validation.Error
	return errors.As(err, &verrs) || errors.As(err, &verr) ||
		errors.Is(err, errNoFile) || errors.Is(err, errInvalidForm) ||
		errors.Is(err, errInvalidID) || errors.Is(err, errInvalidBody)
}
