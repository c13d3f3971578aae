package hxnav

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for navigation operations.
var (
	ErrCSRF          = errors.New("hxnav: csrf token rejected")
	ErrNotFound      = errors.New("hxnav: content not found")
	ErrForbidden     = errors.New("hxnav: forbidden")
	ErrTraversal     = errors.New("hxnav: path traversal rejected")
	ErrStale         = errors.New("hxnav: navigation superseded")
	ErrFetchFailed   = errors.New("hxnav: fetch failed")
	ErrNoSlot        = errors.New("hxnav: layout slot not found")
	ErrUnmanagedForm = errors.New("hxnav: form is not managed")
	ErrClosed        = errors.New("hxnav: engine closed")
)

// StatusError is returned for non-2xx responses that are not CSRF
// rejections.
type StatusError struct {
	URL    string
	Status int

	// Detail is the server's message: the JSON message/error field or a
	// plain-text snippet of the body.
	Detail string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("hxnav: %s: status %d %s", e.URL, e.Status, http.StatusText(e.Status))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is maps the status onto the package sentinels.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrFetchFailed:
		return true
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrForbidden:
		return e.Status == http.StatusUnauthorized ||
			e.Status == http.StatusForbidden ||
			strings.Contains(e.Detail, "Forbidden")
	}
	return false
}

// IsCSRF checks if err is a CSRF rejection.
func IsCSRF(err error) bool {
	return errors.Is(err, ErrCSRF)
}

// IsNotFound checks if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden checks if err is a permission error: 401, a 403 that was not
// a CSRF rejection, or any error whose message mentions "Forbidden".
func IsForbidden(err error) bool {
	if err == nil || IsCSRF(err) {
		return false
	}
	return errors.Is(err, ErrForbidden) || strings.Contains(err.Error(), "Forbidden")
}

// IsStale checks if err reports a superseded navigation.
func IsStale(err error) bool {
	return errors.Is(err, ErrStale)
}
