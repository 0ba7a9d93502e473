package upstream

import (
	"errors"
	"fmt"
)

// ErrAuthUnavailable indicates no usable credential could be acquired.
// The turn is aborted before any upstream traffic.
var ErrAuthUnavailable = errors.New("upstream: no usable credential available")

// PermissionError is returned when the upstream rejects the credential with
// HTTP 403. The credential has already been disabled as a side effect; the
// body carries the upstream error text verbatim.
type PermissionError struct {
	Body string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("upstream: permission denied: %s", e.Body)
}

// StatusError is returned for any other non-2xx upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: status %d: %s", e.Code, e.Body)
}

// StatusCode reports the upstream HTTP status.
func (e *StatusError) StatusCode() int { return e.Code }
