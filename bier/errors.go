package bier

import (
	"errors"
	"fmt"
)

// ErrMissingConfig indicates required configuration or credentials are absent.
// Scripts treat this as a fatal startup condition, never a retry condition.
var ErrMissingConfig = errors.New("missing required configuration")

// AuthError is a failed authentication against the AGO portal, either at
// initial connect or a token rejection (codes 498/499) mid-operation.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("ago auth failed (code %d): %s", e.Code, e.Message)
	}
	return "ago auth failed: " + e.Message
}

// AGOError is a portal-level error returned inside a 200 response body.
type AGOError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (e *AGOError) Error() string {
	return fmt.Sprintf("ago error (code %d): %s", e.Code, e.Message)
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request on url %s returned %d", e.URL, e.StatusCode)
}

// Transient reports whether the status is worth retrying (throttling or
// server-side failure). Client errors are a bad request, not a blip.
func (e *StatusError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// DecodeError is a 2xx response whose body could not be parsed as JSON.
// Not retried: it signals a broken contract, not a transient failure.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EditError is a feature edit batch that only partially applied. The applied
// portion is not rolled back, so a retried batch may duplicate rows.
type EditError struct {
	Op        string
	Requested int
	Applied   int
}

func (e *EditError) Error() string {
	return fmt.Sprintf("%s applied %d of %d features", e.Op, e.Applied, e.Requested)
}

// SyncError means an AGO collection operation exhausted its retry budget.
// Scripts must treat this as non-recoverable and exit non-zero.
type SyncError struct {
	Op       string
	ItemID   string
	Attempts int
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("all %d attempts failed for %s on ItemID %s: %v", e.Attempts, e.Op, e.ItemID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// StoreError means an object storage operation exhausted its retry budget.
type StoreError struct {
	Op       string
	Path     string
	Attempts int
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("all %d attempts failed to %s %s: %v", e.Attempts, e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
