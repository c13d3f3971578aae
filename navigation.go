package hxnav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pthm/hxnav/lib/config"
	"github.com/pthm/hxnav/lib/dom"
	"github.com/pthm/hxnav/lib/modules"
	"github.com/pthm/hxnav/lib/pages"
	"github.com/pthm/hxnav/lib/scripts"
	"golang.org/x/net/html"
)

type historyMode int

const (
	pushHistory historyMode = iota
	replaceHistory
	keepHistory
)

// Engine owns the current content pointer and mediates every transition to
// a new one: resolve, commit history, fetch, inject into the layout slot,
// then run the post-inject steps.
//
// Every committed navigation takes a new sequence number. Results of a
// navigation that has been superseded are discarded with ErrStale, so a
// slow response can never overwrite newer content.
type Engine struct {
	cfg    *config.Config
	base   *url.URL
	client *http.Client
	logger *slog.Logger

	history  History
	pages    *pages.Registry
	loader   *modules.Loader
	guard    CSRFGuard
	noGuard  bool
	notifier Notifier
	confirm  Confirmer
	window   Window
	widgets  []WidgetInitializer
	uploader FileUploader
	scripts  ScriptRunner

	mu        sync.Mutex
	doc       *html.Node
	slot      *html.Node
	current   string
	seq       uint64
	listeners []listener
	timers    map[*time.Timer]struct{}
	closed    bool
}

// NewEngine creates an engine for cfg. A nil cfg uses config.Default().
// Collaborators not supplied through options are absent, see the
// capability interfaces for what absence means.
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("hxnav: %w", err)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("hxnav: base url: %w", err)
	}

	e := &Engine{
		cfg:    cfg,
		base:   base,
		timers: make(map[*time.Timer]struct{}),
	}
	for _, o := range opts {
		o(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("hxnav: cookie jar: %w", err)
		}
		e.client = &http.Client{Jar: jar, Timeout: cfg.RequestTimeout}
	}
	if e.history == nil {
		e.history = NewMemoryHistory()
	}
	if e.pages == nil {
		e.pages = pages.NewRegistry(e.logger)
	}
	if e.loader == nil {
		e.loader = modules.NewLoader(modules.WithLogger(e.logger))
	}
	e.loader.SetFetcher(e)
	if r, ok := e.scripts.(modules.Runner); ok {
		e.loader.SetRunner(r)
	}
	for id, script := range cfg.Modules {
		e.loader.Register(modules.Module{ID: id, Script: script})
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Pages returns the page registry.
func (e *Engine) Pages() *pages.Registry { return e.pages }

// Modules returns the module loader.
func (e *Engine) Modules() *modules.Loader { return e.loader }

// History returns the session history.
func (e *Engine) History() History { return e.history }

// Start mounts the layout and shows the initial content.
//
// The layout is fetched from visibleURL unless one was supplied with
// WithLayout. The content URL comes from the visible URL's query, falling
// back to the default content. If the slot already holds server-injected
// content, history is replaced and the post-inject steps run on it without
// a fetch; otherwise the content is loaded with history replace.
func (e *Engine) Start(ctx context.Context, visibleURL string) error {
	if visibleURL == "" {
		visibleURL = e.cfg.LayoutPath
	}

	e.mu.Lock()
	doc := e.doc
	e.mu.Unlock()
	if doc == nil {
		fetched, err := e.fetchLayout(ctx, visibleURL)
		if err != nil {
			return fmt.Errorf("hxnav: start: %w", err)
		}
		doc = fetched
	}
	if obs, ok := e.guard.(DocumentObserver); ok {
		obs.ObserveDocument(doc)
	}

	e.mu.Lock()
	slot := dom.ByID(doc, SlotID)
	if slot == nil {
		e.mu.Unlock()
		return fmt.Errorf("hxnav: start: %w", ErrNoSlot)
	}
	e.doc, e.slot = doc, slot
	e.bindOnce()
	prefilled := dom.HasElementChild(slot)
	e.mu.Unlock()

	content := ContentFromURL(visibleURL, e.cfg.ContentParam)
	if content == "" {
		content = e.cfg.DefaultContent
	}
	if !prefilled || HasTraversal(content) {
		return e.navigate(ctx, content, replaceHistory)
	}

	contentURL := Resolve(content, "")
	seq := e.commit(contentURL, replaceHistory)
	e.mu.Lock()
	inline := inlineScripts(slot, contentURL)
	e.mu.Unlock()
	e.logger.Debug("hxnav: adopted server-injected content", "url", contentURL)
	return e.postInject(ctx, seq, contentURL, inline, "")
}

// Navigate loads target and pushes a history entry.
func (e *Engine) Navigate(ctx context.Context, target string) error {
	return e.navigate(ctx, target, pushHistory)
}

// Redirect loads target and replaces the current history entry.
func (e *Engine) Redirect(ctx context.Context, target string) error {
	return e.navigate(ctx, target, replaceHistory)
}

// Reload loads the current content again, replacing history.
func (e *Engine) Reload(ctx context.Context) error {
	return e.navigate(ctx, e.Current(), replaceHistory)
}

// Back moves history back one entry and shows it. At the start of history
// it does nothing.
func (e *Engine) Back(ctx context.Context) error {
	entry, ok := e.history.Back()
	if !ok {
		return nil
	}
	return e.PopState(ctx, entry)
}

// Forward moves history forward one entry and shows it.
func (e *Engine) Forward(ctx context.Context) error {
	entry, ok := e.history.Forward()
	if !ok {
		return nil
	}
	return e.PopState(ctx, entry)
}

// PopState shows the content recorded in entry without touching history.
// The content comes from the entry state, else the entry URL query, else
// the default content.
func (e *Engine) PopState(ctx context.Context, entry Entry) error {
	content := ""
	if entry.State != nil {
		content = entry.State.Content
	}
	if content == "" {
		content = ContentFromURL(entry.URL, e.cfg.ContentParam)
	}
	if content == "" {
		content = e.cfg.DefaultContent
	}
	return e.navigate(ctx, content, keepHistory)
}

func (e *Engine) navigate(ctx context.Context, target string, mode historyMode) error {
	if e.isClosed() {
		return ErrClosed
	}

	raw := strings.TrimSpace(target)
	if raw == "" {
		raw = e.cfg.DefaultContent
	}
	if HasTraversal(raw) {
		seq := e.supersede()
		e.logger.Warn("hxnav: rejected traversal target", "target", raw)
		e.showPanel(seq, SecurityPanel())
		return fmt.Errorf("hxnav: navigate %q: %w", raw, ErrTraversal)
	}

	prev := e.Current()
	contentURL := Resolve(raw, prev)
	seq := e.commit(contentURL, mode)
	e.logger.Debug("hxnav: navigate", "url", contentURL, "seq", seq)

	p, err := e.fetchPage(ctx, contentURL)
	if err != nil {
		if ctx.Err() != nil && !IsCSRF(err) {
			e.revert(seq, prev, mode)
		}
		return e.fail(ctx, seq, contentURL, err)
	}
	if err := e.inject(seq, p); err != nil {
		if IsStale(err) {
			e.logger.Debug("hxnav: discarded stale response", "url", contentURL, "seq", seq)
		}
		return fmt.Errorf("hxnav: inject %s: %w", contentURL, err)
	}
	return e.postInject(ctx, seq, contentURL, p.scripts, p.title)
}

// commit updates the content pointer and history and returns the new
// navigation's sequence number.
func (e *Engine) commit(contentURL string, mode historyMode) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	e.current = contentURL
	entry := Entry{
		State: &State{Content: contentURL},
		URL:   VisibleURL(e.cfg.LayoutPath, e.cfg.ContentParam, contentURL),
	}
	switch mode {
	case pushHistory:
		e.history.Push(entry)
	case replaceHistory:
		e.history.Replace(entry)
	}
	return e.seq
}

// revert points the engine back at prev after navigation seq was abandoned
// by its caller, so the pointer and the current history entry keep
// mirroring the slot. An abandoned push leaves a duplicate entry for prev.
func (e *Engine) revert(seq uint64, prev string, mode historyMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq != seq || e.closed || prev == "" {
		return
	}
	e.current = prev
	if mode != keepHistory {
		e.history.Replace(Entry{
			State: &State{Content: prev},
			URL:   VisibleURL(e.cfg.LayoutPath, e.cfg.ContentParam, prev),
		})
	}
}

// supersede invalidates every in-flight navigation without changing the
// content pointer.
func (e *Engine) supersede() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	return e.seq
}

func (e *Engine) isCurrent(seq uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq == seq && !e.closed
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// fail routes a failed load to the CSRF guard or an error panel.
func (e *Engine) fail(ctx context.Context, seq uint64, contentURL string, err error) error {
	switch {
	case IsCSRF(err):
		e.recoverCSRF(ctx, err)
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("hxnav: load %s: %w", contentURL, ctx.Err())
	case !e.isCurrent(seq):
		e.logger.Debug("hxnav: discarded stale failure", "url", contentURL, "error", err)
		return fmt.Errorf("hxnav: load %s: %w", contentURL, ErrStale)
	}

	fallback := e.cfg.DefaultContent
	switch {
	case IsNotFound(err):
		delay := e.cfg.NotFoundRedirectDelay
		e.showPanel(seq, NotFoundPanel(fallback, delay))
		e.after(delay, seq, func() {
			if rerr := e.Redirect(context.Background(), fallback); rerr != nil && !IsStale(rerr) {
				e.logger.Warn("hxnav: fallback redirect failed", "error", rerr)
			}
		})
	case IsForbidden(err):
		e.showPanel(seq, ForbiddenPanel(fallback))
	default:
		e.showPanel(seq, RetryPanel(fallback, errorDetail(err)))
	}
	e.logger.Warn("hxnav: load failed", "url", contentURL, "error", err)
	return err
}

// after runs fn once delay has passed, unless another navigation happened
// in the meantime or the engine was closed.
func (e *Engine) after(delay time.Duration, seq uint64, fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		e.mu.Lock()
		delete(e.timers, t)
		live := e.seq == seq && !e.closed
		e.mu.Unlock()
		if live {
			fn()
		}
	})
	e.timers[t] = struct{}{}
}

func (e *Engine) recoverCSRF(ctx context.Context, err error) {
	if r, ok := e.guard.(CSRFRecoverer); ok {
		r.RecoverCSRF(ctx, err)
		return
	}
	e.logger.Warn("hxnav: csrf rejection", "error", err)
}

// Current returns the content URL currently displayed.
func (e *Engine) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// WithDocument runs fn with the layout document locked. fn must not call
// back into the Engine. It is not called before the layout is mounted.
func (e *Engine) WithDocument(fn func(doc *html.Node)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc != nil {
		fn(e.doc)
	}
}

// SlotHTML returns the markup currently in the layout slot.
func (e *Engine) SlotHTML() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return dom.InnerHTML(e.slot)
}

// Title returns the layout document title.
func (e *Engine) Title() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strings.TrimSpace(dom.Text(dom.FindTag(e.doc, "title")))
}

// Close stops pending timers. Later navigations fail with ErrClosed and
// in-flight ones are discarded.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.seq++
	for t := range e.timers {
		t.Stop()
	}
	e.timers = nil
	return nil
}

func (e *Engine) notify(level, message string) {
	if e.notifier == nil {
		e.logger.Info("hxnav: notification", "level", level, "message", message)
		return
	}
	e.notifier.Notify(level, message)
}

func (e *Engine) ask(message string) bool {
	if e.confirm == nil {
		e.logger.Warn("hxnav: no confirmer configured, declining", "message", message)
		return false
	}
	return e.confirm.Confirm(message)
}

// inlineScripts lists the executable inline scripts under n in document
// order. Scripts with a src or a non-JavaScript type are skipped.
func inlineScripts(n *html.Node, contentURL string) []scripts.Inline {
	var out []scripts.Inline
	for _, s := range dom.FindAllTag(n, "script") {
		if dom.HasAttr(s, "src") {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(dom.AttrOr(s, "type", ""))) {
		case "", "text/javascript", "application/javascript", "module":
		default:
			continue
		}
		src := dom.Text(s)
		if strings.TrimSpace(src) == "" {
			continue
		}
		out = append(out, scripts.Inline{Index: len(out), Source: src, ContentURL: contentURL})
	}
	return out
}
