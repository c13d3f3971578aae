package hxnav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/pthm/hxnav/lib/dom"
	"github.com/pthm/hxnav/lib/pages"
	"github.com/pthm/hxnav/lib/scripts"
	"golang.org/x/net/html"
)

// SelectContentRoot picks the node of a fetched document to inject: the
// explicit slot root, else the page root, else the first <main>, else
// <body>, else the document itself. It always returns a node for a
// non-nil document.
func SelectContentRoot(doc *html.Node) *html.Node {
	for _, key := range []string{AttrSlotRoot, AttrPageRoot} {
		if n := dom.FindAttr(doc, key); n != nil {
			return n
		}
	}
	for _, tag := range []string{"main", "body"} {
		if n := dom.FindTag(doc, tag); n != nil {
			return n
		}
	}
	return doc
}

func isContainer(root *html.Node) bool {
	return root.Type == html.DocumentNode ||
		dom.IsElement(root, "body") ||
		dom.HasAttr(root, AttrSlotRoot)
}

// inject replaces the slot content with the page root. The slot is always
// cleared first; a superseded navigation leaves it untouched.
func (e *Engine) inject(seq uint64, p *page) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.closed:
		return ErrClosed
	case e.seq != seq:
		return ErrStale
	case e.slot == nil:
		return ErrNoSlot
	}

	dom.RemoveChildren(e.slot)
	if p.unwrap {
		dom.MoveChildren(e.slot, p.root)
	} else {
		dom.Detach(p.root)
		e.slot.AppendChild(p.root)
	}
	return nil
}

// showPanel replaces the slot content with an error panel, unless a newer
// navigation has started.
func (e *Engine) showPanel(seq uint64, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		e.logger.Error("hxnav: render panel", "error", err)
		return
	}
	nodes, err := dom.ParseFragment(buf.String())
	if err != nil {
		e.logger.Error("hxnav: parse panel", "error", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq != seq || e.slot == nil {
		return
	}
	dom.RemoveChildren(e.slot)
	for _, n := range nodes {
		e.slot.AppendChild(n)
	}
}

// postInject runs the steps that follow every content swap, in order:
// module load, inline scripts, page initializers, widgets, form binding,
// sidebar state and title. A failing step is logged and the next one still
// runs. Once the navigation is superseded the remaining steps are skipped.
func (e *Engine) postInject(ctx context.Context, seq uint64, contentURL string, inline []scripts.Inline, title string) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"modules", func() error { return e.loader.Load(ctx, contentURL) }},
		{"scripts", func() error { return e.runScripts(ctx, seq, inline) }},
		{"pages", func() error {
			e.pages.Run(e.slotNode(), pages.Context{
				Context:    ctx,
				ContentURL: contentURL,
				Navigator:  e,
				Logger:     e.logger,
			})
			return nil
		}},
		{"widgets", func() error { return e.initWidgets(seq) }},
		{"forms", func() error { e.bindForms(); return nil }},
		{"sidebar", func() error { e.markSidebar(contentURL); return nil }},
		{"title", func() error { e.setTitle(title); return nil }},
	}

	for _, s := range steps {
		if !e.isCurrent(seq) {
			return fmt.Errorf("hxnav: %s of %s: %w", s.name, contentURL, ErrStale)
		}
		if err := isolate(s.run); err != nil {
			e.logger.Warn("hxnav: post-inject step failed", "step", s.name, "url", contentURL, "error", err)
		}
	}
	return nil
}

// isolate runs fn, turning a panic into an error.
func isolate(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

func (e *Engine) slotNode() *html.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slot
}

func (e *Engine) runScripts(ctx context.Context, seq uint64, inline []scripts.Inline) error {
	if e.scripts == nil || len(inline) == 0 {
		return nil
	}
	var errs []error
	for _, s := range inline {
		if !e.isCurrent(seq) {
			return ErrStale
		}
		if err := isolate(func() error { return e.scripts.RunInline(ctx, s) }); err != nil {
			errs = append(errs, fmt.Errorf("inline script %d: %w", s.Index, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) initWidgets(seq uint64) error {
	slot := e.slotNode()
	var errs []error
	for i, w := range e.widgets {
		if !e.isCurrent(seq) {
			return ErrStale
		}
		if err := isolate(func() error { w.InitializeContainers(slot); return nil }); err != nil {
			errs = append(errs, fmt.Errorf("widget %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// bindForms flags SPA-managed forms in the slot. Only bound forms are
// submitted by the engine, and a form is bound at most once.
func (e *Engine) bindForms() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range dom.FindAllAttr(e.slot, AttrFormManager) {
		if !dom.IsElement(f, "form") || dom.HasAttr(f, AttrFormBound) {
			continue
		}
		dom.SetAttr(f, AttrFormBound, "true")
	}
}

// markSidebar flags the sidebar link whose path shares the most leading
// segments with contentURL as active.
func (e *Engine) markSidebar(contentURL string) {
	want := segments(contentURL)

	e.mu.Lock()
	defer e.mu.Unlock()
	var (
		best      *html.Node
		bestScore int
	)
	for _, nav := range dom.FindAllAttr(e.doc, AttrSidebar) {
		for _, a := range dom.FindAllTag(nav, "a") {
			dom.RemoveClass(a, "active")
			dom.RemoveAttr(a, "aria-current")
			href, ok := dom.Attr(a, "href")
			if !ok {
				continue
			}
			score := sharedPrefix(want, segments(e.linkContent(href)))
			if score > bestScore {
				best, bestScore = a, score
			}
		}
	}
	if best != nil {
		dom.AddClass(best, "active")
		dom.SetAttr(best, "aria-current", "page")
	}
}

// linkContent maps an href to the content URL it shows: layout links carry
// it in their query, other links are content URLs themselves.
func (e *Engine) linkContent(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if u.Host != "" && !strings.EqualFold(u.Host, e.base.Host) {
		return ""
	}
	if u.Path == e.cfg.LayoutPath {
		if c := u.Query().Get(e.cfg.ContentParam); c != "" {
			return c
		}
	}
	if u.Host != "" {
		return u.RequestURI()
	}
	return href
}

func segments(p string) []string {
	p, _ = splitPath(p)
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, strings.TrimSuffix(s, ".html"))
		}
	}
	return out
}

func sharedPrefix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// setTitle sets the layout title to the fetched title plus the configured
// suffix. An empty title leaves the layout title alone.
func (e *Engine) setTitle(title string) {
	if title == "" {
		return
	}
	if suffix := e.cfg.TitleSuffix; suffix != "" && !strings.HasSuffix(title, suffix) {
		title += suffix
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	t := dom.FindTag(e.doc, "title")
	if t == nil {
		head := dom.FindTag(e.doc, "head")
		if head == nil {
			return
		}
		t = dom.NewElement("title")
		head.AppendChild(t)
	}
	dom.SetText(t, title)
}
