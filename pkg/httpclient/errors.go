package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// maxErrorBody bounds how much of an error response body is read.
const maxErrorBody = 1 << 20

// DownstreamErrorResponse mirrors the httputil.ErrorResponse envelope returned
// by the storefront services. Title and Errors cover problem-details bodies
// ({"title": ..., "errors": {"Field": ["msg"]}}) returned by other backends.
type DownstreamErrorResponse struct {
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
		Details []string          `json:"details"`
	} `json:"error"`
	Title  string              `json:"title"`
	Errors map[string][]string `json:"errors"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an appropriate AppError. The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}
	return DecodeError(resp.StatusCode, bodyBytes, serviceName)
}

// AsResponseError converts an error returned by CircuitBreakerClient.Do into
// an AppError when it carries a 5xx response. Other errors pass through.
func AsResponseError(err error, serviceName string) error {
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return DecodeError(srvErr.StatusCode, srvErr.Body, serviceName)
	}
	return err
}

// DecodeError maps an error status and body to the error taxonomy:
// 400 with field errors becomes a Validation error holding one message per
// field, 401 Unauthorized, 404 NotFound, 409 Conflict, 503 ServiceUnavailable
// and any other 5xx a Server error carrying the raw payload.
func DecodeError(status int, body []byte, serviceName string) error {
	var downstream DownstreamErrorResponse
	structured := json.Unmarshal(body, &downstream) == nil

	code, message := "", ""
	var messages []string
	if structured {
		if e := downstream.Error; e != nil {
			code, message = e.Code, e.Message
			messages = append(messages, e.Details...)
			if len(messages) == 0 {
				messages = flattenFields(e.Fields)
			}
		}
		if message == "" {
			message = downstream.Title
		}
		if len(messages) == 0 {
			messages = flattenProblem(downstream.Errors)
		}
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(status)
	}
	qualifiedMsg := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusBadRequest && len(messages) > 0:
		return apperrors.Validation(messages)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(message)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualifiedMsg)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualifiedMsg)
	case status == http.StatusNotFound:
		return apperrors.Missing(message)
	case status == http.StatusConflict:
		return apperrors.Conflict(message)
	case status == http.StatusServiceUnavailable:
		return apperrors.ServiceUnavailable(qualifiedMsg)
	case status >= 500:
		summary := fmt.Sprintf("%s server error (%d)", serviceName, status)
		if len(body) == 0 {
			return apperrors.Server(summary)
		}
		return apperrors.Server(summary, string(body))
	default:
		if code == "" {
			code = "HTTP_" + fmt.Sprint(status)
		}
		return &apperrors.AppError{
			Code:    code,
			Message: qualifiedMsg,
			Status:  status,
		}
	}
}

func flattenFields(fields map[string]string) []string {
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, 0, len(fields))
	for field, msg := range fields {
		out = append(out, field+" "+msg)
	}
	sort.Strings(out)
	return out
}

func flattenProblem(errs map[string][]string) []string {
	if len(errs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		out = append(out, errs[k]...)
	}
	return out
}
