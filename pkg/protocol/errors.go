package protocol

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Error code strings carried on the wire.
const (
	CodeWalletLocked           = "WALLET_LOCKED"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeSessionExpired         = "SESSION_EXPIRED"
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidState           = "INVALID_STATE"
	CodeTooManyPendingRequests = "TOO_MANY_PENDING_REQUESTS"
	CodeMaxSessionsExceeded    = "MAX_SESSIONS_EXCEEDED"
	CodeTooManyAttempts        = "TOO_MANY_ATTEMPTS"
	CodeAccountLocked          = "ACCOUNT_LOCKED"
	CodeNetworkError           = "NETWORK_ERROR"
	CodeTransactionFailed      = "TRANSACTION_FAILED"
	CodeUserRejected           = "USER_REJECTED"
	CodeServerError            = "SERVER_ERROR"
)

// Error is the structured error shared by server handlers (which write it
// as a JSON response) and the SDK (which parses responses back into it).
// Expected protocol failures are values of this type; anything else is a
// transport or programming error.
type Error struct {
	// Status is the HTTP status code, not serialized.
	Status int `json:"-"`

	// Code is the machine-readable error code.
	Code string `json:"error"`

	// Detail is a human-readable description.
	Detail string `json:"detail"`

	// RetryAfter is the remaining wait in seconds for rate-limit and
	// lockout errors. Zero when not applicable.
	RetryAfter int `json:"retry_after_seconds,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Is matches on the error code, so errors.Is works against the
// predeclared values even after WithDetail or WithRetryAfter.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithDetail returns a copy of e with a different detail message. The
// predeclared errors are shared values and must never be mutated in place.
func (e *Error) WithDetail(detail string) *Error {
	c := *e
	c.Detail = detail
	return &c
}

// WithRetryAfter returns a copy of e carrying a remaining-wait hint.
func (e *Error) WithRetryAfter(seconds int, detail string) *Error {
	c := *e
	c.RetryAfter = seconds
	c.Detail = detail
	return &c
}

// WriteError writes e as a JSON HTTP response, setting Retry-After when a
// wait hint is present.
func (e *Error) WriteError(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(e.RetryAfter))
	}
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e)
}

// Predeclared protocol errors. Use WithDetail/WithRetryAfter to attach
// request-specific context.
var (
	ErrWalletLocked = &Error{
		Status: http.StatusLocked,
		Code:   CodeWalletLocked,
		Detail: "wallet is locked",
	}

	ErrUnauthorized = &Error{
		Status: http.StatusUnauthorized,
		Code:   CodeUnauthorized,
		Detail: "missing or invalid session token",
	}

	ErrForbidden = &Error{
		Status: http.StatusForbidden,
		Code:   CodeForbidden,
		Detail: "session lacks the required permission",
	}

	ErrSessionExpired = &Error{
		Status: http.StatusUnauthorized,
		Code:   CodeSessionExpired,
		Detail: "session has expired",
	}

	ErrInvalidRequest = &Error{
		Status: http.StatusBadRequest,
		Code:   CodeInvalidRequest,
		Detail: "the request is malformed or missing required fields",
	}

	ErrNotFound = &Error{
		Status: http.StatusNotFound,
		Code:   CodeNotFound,
		Detail: "unknown request id",
	}

	ErrInvalidState = &Error{
		Status: http.StatusConflict,
		Code:   CodeInvalidState,
		Detail: "request is not pending",
	}

	ErrTooManyPendingRequests = &Error{
		Status: http.StatusTooManyRequests,
		Code:   CodeTooManyPendingRequests,
		Detail: "too many pending authorization requests",
	}

	ErrMaxSessionsExceeded = &Error{
		Status: http.StatusTooManyRequests,
		Code:   CodeMaxSessionsExceeded,
		Detail: "maximum number of active sessions reached",
	}

	ErrTooManyAttempts = &Error{
		Status: http.StatusTooManyRequests,
		Code:   CodeTooManyAttempts,
		Detail: "too many unlock attempts",
	}

	ErrAccountLocked = &Error{
		Status: http.StatusTooManyRequests,
		Code:   CodeAccountLocked,
		Detail: "unlock temporarily disabled after repeated failures",
	}

	ErrNetworkError = &Error{
		Status: http.StatusBadGateway,
		Code:   CodeNetworkError,
		Detail: "chain client request failed",
	}

	ErrTransactionFailed = &Error{
		Status: http.StatusBadGateway,
		Code:   CodeTransactionFailed,
		Detail: "transaction was not accepted by the network",
	}

	ErrUserRejected = &Error{
		Status: http.StatusForbidden,
		Code:   CodeUserRejected,
		Detail: "authorization request was denied",
	}

	ErrServerError = &Error{
		Status: http.StatusInternalServerError,
		Code:   CodeServerError,
		Detail: "internal server error",
	}
)

// ParseErrorResponse converts a non-2xx HTTP response body into a *Error.
// Unparseable bodies become a generic error carrying the status code.
func ParseErrorResponse(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var e Error
	if err := json.Unmarshal(body, &e); err == nil && e.Code != "" {
		e.Status = status
		return &e
	}

	return &Error{
		Status: status,
		Code:   CodeServerError,
		Detail: fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status)),
	}
}
