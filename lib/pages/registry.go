// Package pages maps page ids found in loaded markup to initializer
// functions and runs each initializer at most once per page root.
//
// The "already initialized" marker lives on the root element itself
// (data-page-initialized), so two subtrees carrying the same page id are
// initialized independently and the marker disappears with the node when
// the next navigation replaces it.
package pages

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/pthm/hxnav/lib/dom"
	"golang.org/x/net/html"
)

// Attribute names shared with server-rendered markup.
const (
	AttrPageRoot    = "data-page-root"
	AttrPageID      = "data-page-id"
	AttrInitialized = "data-page-initialized"
)

// Navigator lets initializers trigger navigation without depending on the
// engine package.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// Context is handed to every initializer.
type Context struct {
	context.Context

	// ContentURL is the content URL the page root was loaded from.
	ContentURL string

	// Navigator is the engine that injected the page. May be nil in tests.
	Navigator Navigator

	Logger *slog.Logger
}

// InitFunc initializes one page root.
type InitFunc func(root *html.Node, ctx Context) error

// Registry holds page initializers keyed by page id.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]InitFunc
	marks    sync.Mutex
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]InitFunc),
		logger:   logger,
	}
}

// Register stores fn under id. The last registration wins; a nil fn is
// ignored.
func (r *Registry) Register(id string, fn InitFunc) {
	if fn == nil || id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[id]; exists {
		r.logger.Debug("pages: replacing initializer", "page", id)
	}
	r.handlers[id] = fn
}

// Unregister removes the initializer for id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, id)
}

// List returns the registered page ids in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup returns the initializer registered for id.
func (r *Registry) Lookup(id string) (InitFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[id]
	return fn, ok
}

// PageRoot returns the page root inside container: the first element
// flagged data-page-root (container included), or the container itself.
func PageRoot(container *html.Node) *html.Node {
	if root := dom.FindAttr(container, AttrPageRoot); root != nil {
		return root
	}
	return container
}

// Run initializes the page root found in container. It returns true when a
// handler was invoked. Handler errors and panics are logged, never
// returned: one broken page must not break navigation.
func (r *Registry) Run(container *html.Node, ctx Context) bool {
	if container == nil {
		return false
	}
	root := PageRoot(container)
	id := dom.AttrOr(root, AttrPageID, "")
	if id == "" {
		return false
	}
	fn, ok := r.Lookup(id)
	if !ok {
		return false
	}

	r.marks.Lock()
	if mark, _ := dom.Attr(root, AttrInitialized); mark == id {
		r.marks.Unlock()
		return false
	}
	dom.SetAttr(root, AttrInitialized, id)
	r.marks.Unlock()

	if ctx.Context == nil {
		ctx.Context = context.Background()
	}
	if ctx.Logger == nil {
		ctx.Logger = r.logger
	}
	if err := r.invoke(fn, root, ctx); err != nil {
		r.logger.Error("pages: initializer failed",
			"page", id, "url", ctx.ContentURL, "error", err)
	}
	return true
}

// Reset clears the marker on the container's page root so the next Run
// initializes it again.
func (r *Registry) Reset(container *html.Node) {
	if container == nil {
		return
	}
	r.marks.Lock()
	defer r.marks.Unlock()
	dom.RemoveAttr(PageRoot(container), AttrInitialized)
}

func (r *Registry) invoke(fn InitFunc, root *html.Node, ctx Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pages: initializer panic: %v", p)
		}
	}()
	return fn(root, ctx)
}
