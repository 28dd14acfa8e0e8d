package web

// errors.go turns service errors into JSON responses. The technical error
// is logged with the request ID; the client gets the operator message and
// support code from core.MapError.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/rxstock/internal/core"
	"github.com/JonMunkholm/rxstock/internal/logging"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string           `json:"error"`
	Message string           `json:"message"`
	Action  string           `json:"action,omitempty"`
	Code    string           `json:"code"`
	Fields  []FieldError     `json:"fields,omitempty"`
	Plan    *core.CommitPlan `json:"plan,omitempty"`
}

// FieldError names one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var (
		pe  *core.ResolutionPreconditionError
		ve  core.ValidationError
		vr  validator.ValidationErrors
		bad *badRequestError
	)
	switch {
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrRecordNotFound),
		errors.Is(err, core.ErrNoCommitResult):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSessionBusy),
		errors.Is(err, core.ErrSkippedNotAcknowledged),
		errors.Is(err, core.ErrIllegalTransition),
		errors.As(err, &pe):
		return http.StatusConflict
	case errors.Is(err, core.ErrProductNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyCommits):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnknownMode),
		errors.Is(err, core.ErrMissingColumns),
		errors.Is(err, core.ErrEmptyFile),
		errors.As(err, &ve),
		errors.As(err, &vr),
		errors.As(err, &bad):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its mapped message with the status
// statusFor chooses.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondErrorBody(w, r, err, ErrorResponse{})
}

func (s *Server) respondErrorBody(w http.ResponseWriter, r *http.Request, err error, body ErrorResponse) {
	status := statusFor(err)
	msg := core.MapError(err)

	var bad *badRequestError
	if errors.As(err, &bad) {
		msg = core.UserMessage{Message: bad.msg, Action: "Fix the request and try again", Code: "REQ001"}
	}
	var vr validator.ValidationErrors
	if errors.As(err, &vr) {
		msg = core.UserMessage{Message: "Request failed validation", Action: "Check the listed fields", Code: "REQ002"}
		for _, fe := range vr {
			body.Fields = append(body.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
	}

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request error", "path", r.URL.Path, "status", status, "code", msg.Code, "error", err.Error())
	} else {
		logger.Warn("request rejected", "path", r.URL.Path, "status", status, "code", msg.Code, "error", err.Error())
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(int(s.retryAfter.Seconds())))
	}

	body.Error = msg.Message
	body.Message = msg.Message
	body.Action = msg.Action
	body.Code = msg.Code
	writeJSON(w, status, body)
}

// badRequestError is a malformed request (bad ID, undecodable body).
type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &badRequestError{msg: msg, err: err}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}
