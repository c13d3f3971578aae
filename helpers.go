package hxnav

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/a-h/templ"
)

// Server-side helpers for backends that serve content to the engine.

// Render writes a templ component to the HTTP response.
//
// Sets Content-Type to text/html and renders the component using the
// request's context:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    hxnav.Render(w, r, workOrderList(items))
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsPartialRequest returns true if the request was issued by the engine
// (or any XHR client) rather than a full browser navigation.
//
// Use it to serve the layout to direct visits of a content URL:
//
//	if !hxnav.IsPartialRequest(r) {
//	    http.Redirect(w, r, hxnav.VisibleURL("/layout", "content", r.URL.RequestURI()), http.StatusFound)
//	    return
//	}
func IsPartialRequest(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
}

// WantsJSON returns true if the client prefers a JSON response.
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// ContentParam returns the content URL a layout request asks for, or def.
func ContentParam(r *http.Request, param, def string) string {
	if c := strings.TrimSpace(r.URL.Query().Get(param)); c != "" {
		return c
	}
	return def
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes {"message": msg}, the failure shape the engine shows
// in error toasts.
func WriteError(w http.ResponseWriter, status int, msg string) error {
	return WriteJSON(w, status, map[string]string{"message": msg})
}
