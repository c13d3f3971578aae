package hxnav

import (
	"bytes"
	"context"
	"html"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/a-h/templ"
	"github.com/pthm/hxnav/lib/dom"
	xhtml "golang.org/x/net/html"
)

// Flash levels for toast notifications.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

// Flash represents a one-time notification message.
type Flash struct {
	Level   string // success, error, warning, info
	Message string
}

// Toast renders one flash as a toast element.
//
// The data-auto-dismiss attribute is read by the layout's toast script,
// which removes the toast after the given delay (milliseconds).
func Toast(f Flash) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString(`<div class="toast toast-`)
		sb.WriteString(html.EscapeString(f.Level))
		sb.WriteString(`" role="status" data-auto-dismiss="3000">`)
		sb.WriteString(html.EscapeString(f.Message))
		sb.WriteString(`</div>`)
		_, err := io.WriteString(w, sb.String())
		return err
	})
}

// ToastContainer returns a templ component for the toast container.
//
// Add this to the layout template (typically near the end of <body>):
//
//	@hxnav.ToastContainer()
func ToastContainer() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div id="`+ToastsID+`" class="toast-container"></div>`)
		return err
	})
}

// FlashNotifier is the default Notifier: it appends toasts to the layout's
// #toasts container and keeps the most recent ones for inspection.
type FlashNotifier struct {
	doc    Document
	logger *slog.Logger

	mu     sync.Mutex
	recent []Flash
	limit  int
}

// NewFlashNotifier creates a notifier writing into doc's #toasts container.
func NewFlashNotifier(doc Document, logger *slog.Logger) *FlashNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlashNotifier{doc: doc, logger: logger, limit: 5}
}

// Notify appends a toast. Older toasts beyond the limit are removed from
// the container.
func (n *FlashNotifier) Notify(level, message string) {
	f := Flash{Level: level, Message: message}

	n.mu.Lock()
	n.recent = append(n.recent, f)
	if len(n.recent) > n.limit {
		n.recent = n.recent[len(n.recent)-n.limit:]
	}
	n.mu.Unlock()

	var buf bytes.Buffer
	if err := Toast(f).Render(context.Background(), &buf); err != nil {
		n.logger.Error("hxnav: render toast", "error", err)
		return
	}
	nodes, err := dom.ParseFragment(buf.String())
	if err != nil {
		n.logger.Error("hxnav: parse toast", "error", err)
		return
	}

	appended := false
	if n.doc != nil {
		n.doc.WithDocument(func(doc *xhtml.Node) {
			container := dom.ByID(doc, ToastsID)
			if container == nil {
				return
			}
			for _, node := range nodes {
				container.AppendChild(node)
			}
			n.trim(container)
			appended = true
		})
	}
	if !appended {
		n.logger.Info("hxnav: notification", "level", level, "message", message)
	}
}

func (n *FlashNotifier) trim(container *xhtml.Node) {
	var toasts []*xhtml.Node
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if dom.HasClass(c, "toast") {
			toasts = append(toasts, c)
		}
	}
	for len(toasts) > n.limit {
		container.RemoveChild(toasts[0])
		toasts = toasts[1:]
	}
}

// Flashes returns the most recent notifications, oldest first.
func (n *FlashNotifier) Flashes() []Flash {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Flash, len(n.recent))
	copy(out, n.recent)
	return out
}
