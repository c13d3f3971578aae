package hxnav

import (
	"log/slog"
	"net/http"

	"github.com/pthm/hxnav/lib/modules"
	"github.com/pthm/hxnav/lib/pages"
	"golang.org/x/net/html"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithHTTPClient replaces the HTTP client. The default client carries a
// cookie jar so session cookies behave like same-origin credentials.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

// WithHistory replaces the in-memory history.
func WithHistory(h History) Option {
	return func(e *Engine) { e.history = h }
}

// WithLayout mounts an already parsed layout document instead of fetching
// it on Start.
func WithLayout(doc *html.Node) Option {
	return func(e *Engine) { e.doc = doc }
}

// WithPages shares a page registry with the engine.
func WithPages(reg *pages.Registry) Option {
	return func(e *Engine) { e.pages = reg }
}

// WithModules shares a module loader with the engine. The engine installs
// itself as the loader's script fetcher.
func WithModules(l *modules.Loader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithCSRFGuard sets the CSRF guard.
func WithCSRFGuard(g CSRFGuard) Option {
	return func(e *Engine) { e.guard = g }
}

// WithoutCSRFGuard keeps New from installing the default guard.
func WithoutCSRFGuard() Option {
	return func(e *Engine) {
		e.guard = nil
		e.noGuard = true
	}
}

// WithNotifier sets the toast notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithConfirmer sets the confirmation prompt.
func WithConfirmer(c Confirmer) Option {
	return func(e *Engine) { e.confirm = c }
}

// WithWindow sets the native navigation handler.
func WithWindow(w Window) Option {
	return func(e *Engine) { e.window = w }
}

// WithWidgets appends widget initializers. They run in the given order
// after every content swap.
func WithWidgets(w ...WidgetInitializer) Option {
	return func(e *Engine) { e.widgets = append(e.widgets, w...) }
}

// WithFileUploader sets the upload sub-step of SPA forms.
func WithFileUploader(u FileUploader) Option {
	return func(e *Engine) { e.uploader = u }
}

// WithScriptRunner sets the runner for inline scripts of fetched
// documents. A runner that also implements modules.Runner executes module
// scripts as well.
func WithScriptRunner(r ScriptRunner) Option {
	return func(e *Engine) { e.scripts = r }
}
