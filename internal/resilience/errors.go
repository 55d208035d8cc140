package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// AuthError reports a failed authentication with a data source. It is fatal
// for the job: credentials are assumed static for the run, so retrying the
// same login cannot succeed.
type AuthError struct {
	Adapter string
	Err     error
}

func (e *AuthError) Error() string {
	return "auth failed for adapter " + e.Adapter + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError reports a case identifier the source does not know. Per-item:
// the engine logs and skips, the job continues.
type NotFoundError struct {
	CaseID string
}

func (e *NotFoundError) Error() string {
	return "case not found: " + e.CaseID
}

// TransientError wraps an error that is safe to retry (429, 5xx, network
// timeout, connection reset). StatusCode is zero when the failure was not
// HTTP-level.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// TimeoutError reports an adapter operation that exceeded its configured
// deadline. The engine treats it exactly like TransientError.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return "operation " + e.Op + " timed out: " + e.Err.Error()
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ErrSessionExpired is returned by adapters when a previously valid session
// is no longer accepted. The engine re-authenticates once and retries the item.
var ErrSessionExpired = eris.New("adapter session expired")

// ErrCheckpointCorrupt marks a checkpoint file that cannot be trusted. Fatal
// on load: resuming from an inconsistent cursor risks silent loss or
// duplication, so the operator must resolve it manually.
var ErrCheckpointCorrupt = eris.New("checkpoint corrupt")

// IsAuth returns true if the error chain contains an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsNotFound returns true if the error chain contains a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError or TimeoutError, or if it matches common transient network
// failure patterns (timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var toe *TimeoutError
	if errors.As(err, &toe) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
