// Package csrf is the default CSRF guard for the navigation engine.
//
// The token is read from the layout's <meta name="csrf-token"> (or a hidden
// csrf_token field), attached as the X-CSRF-Token header on same-origin
// requests and copied back into hidden form fields after every request.
// A 403 response is the server's signal that the token or session is no
// longer valid.
package csrf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/pthm/hxnav/lib/dom"
	"golang.org/x/net/html"
)

// Wire names shared with the server.
const (
	HeaderName = "X-CSRF-Token"
	MetaName   = "csrf-token"
	FieldName  = "csrf_token"
)

// ErrRejected is the sentinel every guard error wraps.
var ErrRejected = errors.New("csrf: token rejected")

// Error describes a request the server rejected with 403.
type Error struct {
	URL    string
	Status int
}

func (e *Error) Error() string {
	return fmt.Sprintf("csrf: %s rejected with status %d", e.URL, e.Status)
}

// Unwrap lets errors.Is match ErrRejected.
func (e *Error) Unwrap() error { return ErrRejected }

// Document gives the guard locked access to the layout document.
type Document interface {
	WithDocument(fn func(doc *html.Node))
}

// Guard implements the engine's CSRF capability.
type Guard struct {
	mu        sync.RWMutex
	doc       Document
	token     string
	origin    *url.URL
	onFailure func(ctx context.Context, err error)
	logger    *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithOrigin restricts header attachment to requests for this origin.
func WithOrigin(base string) Option {
	return func(g *Guard) {
		if u, err := url.Parse(base); err == nil && u.Host != "" {
			g.origin = u
		}
	}
}

// WithRecovery sets the user-facing recovery for rejected requests
// (typically a full reload or a redirect to the login page).
func WithRecovery(fn func(ctx context.Context, err error)) Option {
	return func(g *Guard) { g.onFailure = fn }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// New creates a guard reading its token from doc. doc may be nil when the
// token is supplied with SetToken.
func New(doc Document, opts ...Option) *Guard {
	g := &Guard{doc: doc, logger: slog.Default()}
	for _, o := range opts {
		o(g)
	}
	return g
}

// TokenFrom extracts the token from a document: the csrf-token meta tag,
// else the first hidden csrf_token field.
func TokenFrom(doc *html.Node) string {
	for _, m := range dom.FindAllTag(doc, "meta") {
		if dom.AttrOr(m, "name", "") == MetaName {
			if v := dom.AttrOr(m, "content", ""); v != "" {
				return v
			}
		}
	}
	for _, in := range dom.FindAllTag(doc, "input") {
		if dom.AttrOr(in, "name", "") == FieldName {
			if v := dom.AttrOr(in, "value", ""); v != "" {
				return v
			}
		}
	}
	return ""
}

// SetToken overrides the current token.
func (g *Guard) SetToken(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = token
}

// ReadToken returns the current token, reading it from the layout the
// first time. It returns "" when no token is available.
func (g *Guard) ReadToken() string {
	g.mu.RLock()
	tok := g.token
	g.mu.RUnlock()
	if tok != "" || g.doc == nil {
		return tok
	}

	g.doc.WithDocument(func(doc *html.Node) { tok = TokenFrom(doc) })
	if tok != "" {
		g.SetToken(tok)
	}
	return tok
}

// ShouldAttachHeader reports whether req should carry the token header:
// a token exists and the request targets the guarded origin.
func (g *Guard) ShouldAttachHeader(req *http.Request) bool {
	if g.ReadToken() == "" {
		return false
	}
	if g.origin == nil || req.URL.Host == "" {
		return true
	}
	return req.URL.Scheme == g.origin.Scheme && req.URL.Host == g.origin.Host
}

// RefreshForms copies the current token into every hidden csrf_token
// field and the meta tag of the layout.
func (g *Guard) RefreshForms() {
	tok := g.ReadToken()
	if tok == "" || g.doc == nil {
		return
	}
	g.doc.WithDocument(func(doc *html.Node) {
		for _, in := range dom.FindAllTag(doc, "input") {
			if dom.AttrOr(in, "name", "") == FieldName {
				dom.SetAttr(in, "value", tok)
			}
		}
		for _, m := range dom.FindAllTag(doc, "meta") {
			if dom.AttrOr(m, "name", "") == MetaName {
				dom.SetAttr(m, "content", tok)
			}
		}
	})
}

// ObserveDocument picks up a rotated token from a freshly fetched document.
func (g *Guard) ObserveDocument(doc *html.Node) {
	tok := TokenFrom(doc)
	if tok == "" {
		return
	}
	g.mu.Lock()
	changed := tok != g.token
	g.token = tok
	g.mu.Unlock()
	if changed {
		g.logger.Debug("csrf: token rotated")
	}
}

// ToCSRFError builds the error for a 403 response.
func (g *Guard) ToCSRFError(resp *http.Response) error {
	e := &Error{Status: resp.StatusCode}
	if resp.Request != nil && resp.Request.URL != nil {
		e.URL = resp.Request.URL.String()
	}
	return e
}

// RecoverCSRF runs the configured recovery. Without one the failure is
// only logged.
func (g *Guard) RecoverCSRF(ctx context.Context, err error) {
	g.logger.Warn("csrf: request rejected", "error", err)
	if g.onFailure != nil {
		g.onFailure(ctx, err)
	}
}
