package hxnav

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pthm/hxnav/lib/config"
)

// RecordedRequest is one request a TestBackend received.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// TestBackend is an httptest server with chi routing for exercising an
// Engine against canned CMMS responses.
//
//	b := hxnav.NewTestBackend()
//	defer b.Close()
//	b.Layout(hxnav.TestLayout("tok", ""))
//	b.Page("/dashboard", `<main data-page-root data-page-id="dash">hi</main>`)
//	e, _ := hxnav.NewEngine(b.Config())
//	_ = e.Start(ctx, "/layout")
type TestBackend struct {
	Server *httptest.Server
	Router chi.Router

	mu       sync.Mutex
	hits     map[string]int
	holds    map[string]chan struct{}
	requests []RecordedRequest
}

// NewTestBackend starts a backend with no routes.
func NewTestBackend() *TestBackend {
	b := &TestBackend{
		hits:  make(map[string]int),
		holds: make(map[string]chan struct{}),
	}
	r := chi.NewRouter()
	r.Use(b.record)
	b.Router = r
	b.Server = httptest.NewServer(r)
	return b
}

func (b *TestBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		b.mu.Lock()
		b.hits[r.URL.Path]++
		b.requests = append(b.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		hold := b.holds[r.URL.Path]
		b.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// URL returns the backend's base URL.
func (b *TestBackend) URL() string { return b.Server.URL }

// Close shuts the server down.
func (b *TestBackend) Close() { b.Server.Close() }

// Config returns the default configuration pointed at this backend, with a
// short not-found redirect delay.
func (b *TestBackend) Config() *config.Config {
	cfg := config.Default()
	cfg.BaseURL = b.Server.URL
	cfg.NotFoundRedirectDelay = 20 * time.Millisecond
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

// Layout serves body as the layout page at /layout.
func (b *TestBackend) Layout(body string) {
	b.Page("/layout", body)
}

// Page serves body as HTML for GET path.
func (b *TestBackend) Page(path, body string) {
	b.Status(http.MethodGet, path, http.StatusOK, body)
}

// Status serves body with the given status code.
func (b *TestBackend) Status(method, path string, code int, body string) {
	b.Router.Method(method, path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(code)
		_, _ = io.WriteString(w, body)
	}))
}

// JSON serves v as JSON with the given status code.
func (b *TestBackend) JSON(method, path string, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("hxnav: test backend: %v", err))
	}
	b.Router.Method(method, path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write(data)
	}))
}

// Script serves src as JavaScript for GET path.
func (b *TestBackend) Script(path, src string) {
	b.Router.Get(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = io.WriteString(w, src)
	})
}

// Hold blocks requests for path until the returned release is called.
func (b *TestBackend) Hold(path string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.holds[path] = ch
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.holds, path)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Hits returns how many requests path received.
func (b *TestBackend) Hits(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

// Requests returns every recorded request in arrival order.
func (b *TestBackend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RecordedRequest, len(b.requests))
	copy(out, b.requests)
	return out
}

// LastRequest returns the most recent request for method and path.
func (b *TestBackend) LastRequest(method, path string) (RecordedRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		r := b.requests[i]
		if r.Method == method && (r.Path == path || pathOnly(r.Path) == path) {
			return r, true
		}
	}
	return RecordedRequest{}, false
}

func pathOnly(uri string) string {
	p, _ := splitPath(uri)
	return p
}

// TestLayout returns a minimal layout page: CSRF meta tag, sidebar,
// layout slot (holding slot, usually empty) and toast container.
func TestLayout(token, slot string) string {
	return `<!DOCTYPE html><html><head><title>CMMS</title>` +
		`<meta name="csrf-token" content="` + html.EscapeString(token) + `"></head><body>` +
		`<nav data-sidebar>` +
		`<a href="/layout?content=%2Fdashboard">Dashboard</a>` +
		`<a href="/workorder/list">Work orders</a>` +
		`<a href="/plant/list">Plants</a>` +
		`</nav>` +
		`<div id="` + SlotID + `">` + slot + `</div>` +
		`<div id="` + ToastsID + `"></div>` +
		`</body></html>`
}
