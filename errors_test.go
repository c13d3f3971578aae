package hxnav

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/pthm/hxnav/lib/csrf"
)

func TestSentinelErrors(t *testing.T) {
	errs := []error{
		ErrCSRF,
		ErrNotFound,
		ErrForbidden,
		ErrTraversal,
		ErrStale,
		ErrFetchFailed,
		ErrNoSlot,
		ErrUnmanagedForm,
		ErrClosed,
	}

	for i, err1 := range errs {
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestStatusErrorIs(t *testing.T) {
	tests := []struct {
		name      string
		err       *StatusError
		notFound  bool
		forbidden bool
	}{
		{"404", &StatusError{URL: "/x", Status: http.StatusNotFound}, true, false},
		{"401", &StatusError{URL: "/x", Status: http.StatusUnauthorized}, false, true},
		{"403 without guard", &StatusError{URL: "/x", Status: http.StatusForbidden}, false, true},
		{"500 forbidden message", &StatusError{URL: "/x", Status: 500, Detail: "Forbidden: plant scope"}, false, true},
		{"500", &StatusError{URL: "/x", Status: 500}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("navigate: %w", tt.err)
			if got := IsNotFound(wrapped); got != tt.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, tt.notFound)
			}
			if got := IsForbidden(wrapped); got != tt.forbidden {
				t.Errorf("IsForbidden = %v, want %v", got, tt.forbidden)
			}
			if !errors.Is(wrapped, ErrFetchFailed) {
				t.Error("status errors should match ErrFetchFailed")
			}
		})
	}
}

func TestIsCSRF(t *testing.T) {
	guardErr := &csrf.Error{URL: "/api/x", Status: http.StatusForbidden}
	err := fmt.Errorf("hxnav: fetch /api/x: %w: %w", ErrCSRF, guardErr)

	if !IsCSRF(err) {
		t.Error("IsCSRF should match")
	}
	if !errors.Is(err, csrf.ErrRejected) {
		t.Error("guard error should stay reachable")
	}
	if IsForbidden(err) {
		t.Error("CSRF failures are never shown as forbidden")
	}
}

func TestIsStale(t *testing.T) {
	if IsStale(nil) {
		t.Error("nil is not stale")
	}
	if !IsStale(fmt.Errorf("inject: %w", ErrStale)) {
		t.Error("wrapped ErrStale should match")
	}
}
