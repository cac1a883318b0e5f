// Package errors defines the error vocabulary shared by the storefront
// services and the interactive client. Every AppError wraps one of the
// sentinels below, so callers branch with errors.Is and never on codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
)

// AppError is an error with a wire code and HTTP status. Details holds the
// individual messages when there is more than one, such as per-field
// validation failures or a server's diagnostic body.
type AppError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
	Status  int      `json:"-"`
	Err     error    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// kind ties a sentinel to its wire code, status and the message used when a
// bare sentinel reaches the HTTP layer.
type kind struct {
	sentinel error
	code     string
	status   int
	generic  string
}

// kinds is ordered; the first sentinel an error matches decides its kind.
var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound, "resource not found"},
	{ErrConflict, "CONFLICT", http.StatusConflict, "resource was modified concurrently"},
	{ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest, "request validation failed"},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest, ""},
	{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized, "unauthorized"},
	{ErrForbidden, "FORBIDDEN", http.StatusForbidden, "forbidden"},
	{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "service unavailable"},
}

func (k kind) with(message string) *AppError {
	return &AppError{Code: k.code, Message: message, Status: k.status, Err: k.sentinel}
}

// NotFound reports that resource id does not exist.
func NotFound(resource, id string) *AppError {
	return kinds[0].with(fmt.Sprintf("%s with id %s not found", resource, id))
}

// Missing is NotFound with a caller-supplied message, used when a remote
// service already phrased the failure.
func Missing(message string) *AppError { return kinds[0].with(message) }

func Conflict(message string) *AppError { return kinds[1].with(message) }

// Validation reports one message per failed field, joined into Message.
func Validation(messages []string) *AppError {
	e := kinds[2].with(strings.Join(messages, "; "))
	e.Details = messages
	return e
}

func InvalidInput(message string) *AppError       { return kinds[3].with(message) }
func Unauthorized(message string) *AppError       { return kinds[4].with(message) }
func Forbidden(message string) *AppError          { return kinds[5].with(message) }
func ServiceUnavailable(message string) *AppError { return kinds[6].with(message) }

// Server reports a 500 from a remote server, carrying its diagnostic body in
// Details when there is one.
func Server(message string, details ...string) *AppError {
	return &AppError{
		Code:    "SERVER_ERROR",
		Message: message,
		Details: details,
		Status:  http.StatusInternalServerError,
		Err:     ErrInternal,
	}
}

// Classify returns err as an AppError. Errors that wrap a sentinel without
// being an AppError get that sentinel's code and generic message; anything
// else becomes an opaque INTERNAL_ERROR.
func Classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			msg := k.generic
			if msg == "" {
				msg = err.Error()
			}
			e := k.with(msg)
			e.Err = err
			return e
		}
	}
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// HTTPStatus returns the status code err should be answered with.
func HTTPStatus(err error) int { return Classify(err).Status }

// Messages returns the user-presentable messages carried by err. Validation
// errors yield one entry per field; any other AppError yields its message.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return []string{err.Error()}
	}
	if len(appErr.Details) == 0 {
		return []string{appErr.Message}
	}
	return append([]string(nil), appErr.Details...)
}
