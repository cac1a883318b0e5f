// Package httputil writes the JSON envelope every storefront service answers
// with: {"data": ...} on success and {"error": {...}} on failure.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/validator"
)

type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of the envelope. Fields maps a rejected
// request field to its message; RequestID echoes the correlation ID.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Details   []string          `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON encodes v with status. Encoding errors are dropped since the
// status line has already been sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WritePaginated answers a page of items with the paging metadata in the
// Pagination header. A nil page encodes as [].
func WritePaginated[T any](w http.ResponseWriter, items []T, meta pagination.MetaData) {
	if items == nil {
		items = []T{}
	}
	pagination.WriteHeader(w.Header(), meta)
	WriteJSON(w, http.StatusOK, Response{Data: items})
}

// WriteError answers err in the error envelope. Validator failures carry
// their per-field messages; everything else goes through apperrors.Classify.
// 5xx answers are logged on the request-scoped logger, or fallback when the
// request has none.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	ctx := r.Context()
	body := &ErrorResponse{RequestID: logger.CorrelationIDFromContext(ctx)}

	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		body.Code, body.Message = "VALIDATION_ERROR", "request validation failed"
		body.Fields, body.Details = verr.Fields(), verr.Messages()
		WriteJSON(w, http.StatusBadRequest, Response{Error: body})
		return
	}

	appErr := apperrors.Classify(err)
	body.Code, body.Message, body.Details = appErr.Code, appErr.Message, appErr.Details
	if appErr.Status >= http.StatusInternalServerError {
		l := logger.FromContext(ctx)
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(ctx, "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", appErr.Status),
		)
	}
	WriteJSON(w, appErr.Status, Response{Error: body})
}

// ParseID reads a positive integer path parameter. On failure it answers 400
// INVALID_PARAMETER and returns false.
func ParseID(w http.ResponseWriter, param string) (int, bool) {
	if id, err := strconv.Atoi(param); err == nil && id > 0 {
		return id, true
	}
	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_PARAMETER", Message: "invalid id: " + param},
	})
	return 0, false
}
