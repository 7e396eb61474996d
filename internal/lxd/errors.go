package lxd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrCancelled marks a submission the user (or the request context) abandoned.
// Callers treat it as a deliberate action and do not surface it as a failure.
var ErrCancelled = errors.New("Cancelled")

// Error represents an error response from the LXD API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("lxd API %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("lxd API %d", e.StatusCode)
}

// IsNotFound reports whether err is an LXD 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsCancelled reports whether err means the submission was cancelled rather than failed.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return strings.EqualFold(apiErr.Message, "cancelled") || strings.EqualFold(apiErr.Message, "operation cancelled")
	}
	return false
}
