package hxnav

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pthm/hxnav/lib/dom"
	"golang.org/x/net/html"
)

// interactiveTags handle clicks themselves, so a row navigation never
// fires for clicks on them.
var interactiveTags = map[string]bool{
	"a":        true,
	"button":   true,
	"input":    true,
	"select":   true,
	"textarea": true,
	"label":    true,
}

type listener struct {
	name string
	fn   func(ctx context.Context, ev *Event, t *target)
}

// target is the typed view of everything the listeners read from an
// event's target and its ancestors, parsed once per event.
type target struct {
	confirm *ConfirmSpec
	del     *ActionSpec
	action  *ActionSpec
	reload  bool
	row     *RowSpec
	link    *LinkSpec

	form     *FormSpec
	formNode *html.Node
	inSlot   bool
}

// bindOnce installs the delegated listeners. Caller holds e.mu.
func (e *Engine) bindOnce() {
	if e.listeners != nil {
		return
	}
	e.listeners = []listener{
		{"confirm", e.onConfirm},
		{"delete", e.onDelete},
		{"action", e.onAction},
		{"reload", e.onReload},
		{"row", e.onRow},
		{"link", e.onLink},
		{"form", e.onSubmit},
	}
}

// describe reads the target's attributes. Caller holds e.mu.
func (e *Engine) describe(n *html.Node) *target {
	t := &target{}
	if n == nil {
		return t
	}
	if el := dom.ClosestAttr(n, AttrConfirm); el != nil {
		if s, ok := ParseConfirm(el); ok {
			t.confirm = &s
		}
	}
	if el := dom.ClosestAttr(n, AttrDeleteURL); el != nil {
		if s, ok := ParseDelete(el); ok {
			t.del = &s
		}
	}
	if el := dom.ClosestAttr(n, AttrActionURL); el != nil {
		if s, ok := ParseAction(el); ok {
			t.action = &s
		}
	}
	t.reload = dom.ClosestAttr(n, AttrReload) != nil
	if el := dom.ClosestAttr(n, AttrNavigate); el != nil {
		if s, ok := ParseRow(el); ok {
			s.Interactive = interactiveBetween(n, el)
			t.row = &s
		}
	}
	if el := dom.Closest(n, func(x *html.Node) bool { return x.Data == "a" && dom.HasAttr(x, "href") }); el != nil {
		if s, ok := ParseLink(el); ok {
			t.link = &s
		}
	}
	if el := dom.ClosestTag(n, "form"); el != nil {
		if s, ok := ParseForm(el); ok {
			t.form = &s
			t.formNode = el
			t.inSlot = e.slot != nil && dom.Contains(e.slot, el)
		}
	}
	return t
}

// interactiveBetween reports whether an interactive element lies on the
// path from n up to (not including) row.
func interactiveBetween(n, row *html.Node) bool {
	for x := n; x != nil && x != row; x = x.Parent {
		if x.Type == html.ElementNode && interactiveTags[x.Data] {
			return true
		}
	}
	return false
}

// Dispatch runs the delegated listeners for ev, in order: confirm, delete,
// POST action, reload, row navigation, link, form submission. A listener
// that stops propagation ends the dispatch.
func (e *Engine) Dispatch(ctx context.Context, ev *Event) {
	e.dispatch(ctx, ev)
}

func (e *Engine) dispatch(ctx context.Context, ev *Event) *target {
	e.mu.Lock()
	ls := e.listeners
	t := e.describe(ev.Target)
	e.mu.Unlock()

	if ls == nil {
		e.logger.Debug("hxnav: event before start", "type", ev.Type)
	}
	for _, l := range ls {
		if ev.PropagationStopped() {
			break
		}
		l.fn(ctx, ev, t)
	}
	return t
}

// Click dispatches a click on n. Links nobody intercepted are handed to
// the Window for native navigation.
func (e *Engine) Click(ctx context.Context, n *html.Node) *Event {
	ev := NewEvent(EventClick, n)
	t := e.dispatch(ctx, ev)
	if !ev.DefaultPrevented() && t.link != nil {
		e.assign(t.link.Href)
	}
	return ev
}

// Submit dispatches a submit of form. Forms the engine does not manage
// report ErrUnmanagedForm and are left to native submission.
func (e *Engine) Submit(ctx context.Context, form *html.Node) *Event {
	ev := NewEvent(EventSubmit, form)
	e.dispatch(ctx, ev)
	return ev
}

func (e *Engine) assign(href string) {
	dest := href
	if u, err := url.Parse(href); err == nil {
		dest = e.base.ResolveReference(u).String()
	}
	if e.window == nil {
		e.logger.Debug("hxnav: native navigation", "url", dest)
		return
	}
	e.window.Assign(dest)
}

func (e *Engine) onConfirm(ctx context.Context, ev *Event, t *target) {
	if ev.Type != EventClick || t.confirm == nil {
		return
	}
	if !e.ask(t.confirm.Message) {
		ev.PreventDefault()
		ev.StopPropagation()
	}
}

func (e *Engine) onDelete(ctx context.Context, ev *Event, t *target) {
	if ev.Type != EventClick || t.del == nil {
		return
	}
	e.runAction(ctx, ev, *t.del)
}

func (e *Engine) onAction(ctx context.Context, ev *Event, t *target) {
	if ev.Type != EventClick || t.action == nil {
		return
	}
	e.runAction(ctx, ev, *t.action)
}

func (e *Engine) runAction(ctx context.Context, ev *Event, spec ActionSpec) {
	ev.PreventDefault()
	ev.StopPropagation()
	if spec.Confirm != "" && !e.ask(spec.Confirm) {
		return
	}
	ev.Handled = true
	ev.Err = e.performAction(ctx, spec)
}

// performAction sends a delete or POST action. On success it navigates to
// the redirect target, or reloads the current content when there is none.
func (e *Engine) performAction(ctx context.Context, spec ActionSpec) error {
	body, err := e.send(ctx, spec.Method, Resolve(spec.URL, e.Current()), nil)
	if err != nil {
		return e.requestFailed(ctx, err)
	}

	fallback := "Done."
	if spec.Method == http.MethodDelete {
		fallback = "Deleted."
	}
	msg := successMessage(body, fallback)
	if spec.Redirect == "" {
		e.notify(FlashSuccess, msg)
		return e.Reload(ctx)
	}
	return e.followRedirect(ctx, spec.Redirect, body, msg)
}

func (e *Engine) onReload(ctx context.Context, ev *Event, t *target) {
	if ev.Type != EventClick || !t.reload {
		return
	}
	ev.PreventDefault()
	ev.Handled = true
	if e.window != nil {
		e.window.Reload()
		return
	}
	ev.Err = e.Reload(ctx)
}

func (e *Engine) onRow(ctx context.Context, ev *Event, t *target) {
	if ev.Type != EventClick || t.row == nil || t.row.Interactive || ev.DefaultPrevented() {
		return
	}
	ev.PreventDefault()
	ev.Handled = true
	ev.Err = e.Navigate(ctx, t.row.URL)
}

func (e *Engine) onLink(ctx context.Context, ev *Event, t *target) {
	if ev.Type != EventClick || t.link == nil || ev.DefaultPrevented() {
		return
	}
	l := t.link
	if l.NoSPA || l.Download || l.NewContext() || IsBypassed(l.Href, e.base, e.bypassPrefixes()) {
		return
	}
	ev.PreventDefault()
	ev.Handled = true
	ev.Err = e.Navigate(ctx, e.linkTarget(l.Href))
}

// linkTarget turns an internal href into a navigation target: same-origin
// absolute URLs lose their origin and layout links yield their content.
func (e *Engine) linkTarget(href string) string {
	if c := e.linkContent(href); c != "" {
		return c
	}
	return href
}

func (e *Engine) bypassPrefixes() []string {
	if len(e.cfg.BypassPrefixes) > 0 {
		return e.cfg.BypassPrefixes
	}
	return DefaultBypassPrefixes
}

func successMessage(body map[string]any, fallback string) string {
	if s, ok := body["message"].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}
