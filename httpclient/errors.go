package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	apperrors "github.com/kbukum/meetscribe/errors"
)

// Kind classifies a failed sidecar call.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindRequest    Kind = "request" // the request could not be built or was rejected with 4xx
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindRateLimit  Kind = "rate_limit"
	KindServer     Kind = "server"
	KindDecode     Kind = "decode"
)

// Error is a classified client failure. Status is zero when no response
// was received.
type Error struct {
	Kind   Kind
	Status int
	Body   []byte
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "httpclient: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same call may succeed later.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindRateLimit:
		return true
	case KindServer:
		return e.Status >= 500
	}
	return false
}

// snippet returns at most n bytes of the body for error details.
func (e *Error) snippet(n int) string {
	if len(e.Body) <= n {
		return string(e.Body)
	}
	return string(e.Body[:n]) + "..."
}

func transportError(err error) *Error {
	var ne net.Error
	if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindConnection, Err: err}
}

func requestError(format string, args ...any) *Error {
	return &Error{Kind: KindRequest, Err: fmt.Errorf(format, args...)}
}

func decodeError(err error, body []byte) *Error {
	return &Error{Kind: KindDecode, Status: http.StatusOK, Body: body, Err: err}
}

// ClassifyStatusCode returns nil for 2xx and a classified *Error otherwise.
func ClassifyStatusCode(status int, body []byte) *Error {
	if status >= 200 && status < 300 {
		return nil
	}
	e := &Error{Kind: KindServer, Status: status, Body: body}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuth
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
	case status >= 400 && status < 500:
		e.Kind = KindRequest
	}
	return e
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsTimeout reports whether err is a timed-out call.
func IsTimeout(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTimeout
}

// IsRetryable reports whether err is a transient client failure.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// ToAppError converts a failed call to the named sidecar: timeouts become
// TIMEOUT, undecodable bodies MALFORMED_OUTPUT and everything else
// EXTERNAL_SERVICE_ERROR. AppErrors pass through; nil stays nil.
func ToAppError(service string, err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	var e *Error
	if !errors.As(err, &e) {
		return apperrors.FromExternal(service, err)
	}
	switch e.Kind {
	case KindTimeout:
		return apperrors.Timeout(service).WithCause(err)
	case KindDecode:
		return apperrors.MalformedOutput(service, err)
	}
	appErr := apperrors.ExternalServiceError(service, err)
	if e.Status > 0 {
		appErr = appErr.WithDetail("status", e.Status)
		if len(e.Body) > 0 {
			appErr = appErr.WithDetail("body", e.snippet(200))
		}
	}
	return appErr
}
