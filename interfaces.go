package hxnav

import (
	"context"
	"net/http"

	"github.com/pthm/hxnav/lib/scripts"
	"golang.org/x/net/html"
)

// CSRFGuard attaches and refreshes the CSRF token around engine requests.
//
// When no guard is configured, requests carry no token header and a 403 is
// shown as a permission panel instead of being treated as a CSRF failure.
// lib/csrf provides the default implementation.
type CSRFGuard interface {
	ReadToken() string
	ShouldAttachHeader(req *http.Request) bool

	// RefreshForms re-syncs hidden token fields after every request.
	RefreshForms()

	// ToCSRFError builds the error for a 403 response.
	ToCSRFError(resp *http.Response) error
}

// CSRFRecoverer is implemented by guards that own a user-facing recovery
// (reload, login redirect) for rejected requests.
type CSRFRecoverer interface {
	RecoverCSRF(ctx context.Context, err error)
}

// DocumentObserver is implemented by guards that read rotated tokens from
// every fetched document.
type DocumentObserver interface {
	ObserveDocument(doc *html.Node)
}

// Notifier shows transient toasts. Without one, notifications are only
// logged.
type Notifier interface {
	Notify(level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level, message string)

// Notify calls f.
func (f NotifierFunc) Notify(level, message string) { f(level, message) }

// Confirmer asks the user to accept a confirmation prompt. Without one
// every confirmation is declined, so destructive actions never run
// unattended.
type Confirmer interface {
	Confirm(message string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(message string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(message string) bool { return f(message) }

// Window performs native (non-SPA) navigation. Without one, native
// handling is logged and otherwise ignored.
type Window interface {
	// Assign loads url as a full page.
	Assign(url string)

	// Reload reloads the whole page.
	Reload()
}

// WidgetInitializer sets up widgets (file upload, file list) inside root.
// Implementations must be idempotent per container.
type WidgetInitializer interface {
	InitializeContainers(root *html.Node)
}

// FileUploader runs the upload sub-step of an SPA form. It reports whether
// files were uploaded under groupID.
type FileUploader interface {
	Upload(ctx context.Context, form *html.Node, groupID string) (bool, error)
}

// ScriptRunner executes inline scripts of fetched documents.
// lib/scripts provides an embedded implementation.
type ScriptRunner interface {
	RunInline(ctx context.Context, s scripts.Inline) error
}

// Document gives locked access to the layout document. The Engine
// implements it; fn must not call back into the Engine.
type Document interface {
	WithDocument(fn func(doc *html.Node))
}
