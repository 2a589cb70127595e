package modexia

import "fmt"

// AuthError reports a rejected credential (HTTP 401/403). Authentication
// failures are never transient and are not retried.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Message)
}

// PaymentError reports a server-side rejection: a 4xx response, a 5xx that
// survived the retry budget, or an explicit settlement failure.
type PaymentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeServerError    = "server_error"
	ErrCodeTransferFailed = "transfer_failed"
)

// NetworkError reports that the remote was unreachable after the retry
// budget was spent. It wraps the last transport-level cause.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
