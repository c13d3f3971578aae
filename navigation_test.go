package hxnav

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pthm/hxnav/lib/dom"
	"github.com/pthm/hxnav/lib/modules"
	"github.com/pthm/hxnav/lib/pages"
	"github.com/pthm/hxnav/lib/scripts"
	"golang.org/x/net/html"
)

const dashboardPage = `<html><head><title>Dashboard</title></head><body>` +
	`<main data-page-root data-page-id="dashboard"><h1>Dashboard</h1></main></body></html>`

func newBackend(t *testing.T) *TestBackend {
	t.Helper()
	b := NewTestBackend()
	t.Cleanup(b.Close)
	b.Layout(TestLayout("tok-1", ""))
	b.Page("/dashboard", dashboardPage)
	return b
}

func newEngine(t *testing.T, b *TestBackend, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(b.Config(), opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func startEngine(t *testing.T, b *TestBackend, opts ...Option) *Engine {
	t.Helper()
	e := newEngine(t, b, opts...)
	if err := e.Start(context.Background(), "/layout"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return e
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func byID(t *testing.T, e *Engine, id string) *html.Node {
	t.Helper()
	var n *html.Node
	e.WithDocument(func(doc *html.Node) { n = dom.ByID(doc, id) })
	if n == nil {
		t.Fatalf("element #%s not found in:\n%s", id, e.SlotHTML())
	}
	return n
}

func TestStartLoadsDefaultContent(t *testing.T) {
	b := newBackend(t)
	e := startEngine(t, b)

	if got := e.Current(); got != "/dashboard" {
		t.Errorf("Current() = %q, want /dashboard", got)
	}
	if !strings.Contains(e.SlotHTML(), "<h1>Dashboard</h1>") {
		t.Errorf("slot = %s", e.SlotHTML())
	}
	if got := e.Title(); got != "Dashboard | CMMS" {
		t.Errorf("Title() = %q", got)
	}

	h := e.History().(*MemoryHistory)
	cur, _ := h.Current()
	if h.Len() != 1 || cur.URL != "/layout?content=%2Fdashboard" {
		t.Errorf("history = %d entries, current %+v", h.Len(), cur)
	}

	var active []string
	e.WithDocument(func(doc *html.Node) {
		for _, a := range dom.FindAllTag(doc, "a") {
			if dom.HasClass(a, "active") {
				active = append(active, dom.Text(a))
			}
		}
	})
	if len(active) != 1 || active[0] != "Dashboard" {
		t.Errorf("active sidebar links = %v", active)
	}
}

func TestStartUsesContentQuery(t *testing.T) {
	b := newBackend(t)
	b.Page("/workorder/list", `<main>Work orders</main>`)
	e := newEngine(t, b)

	if err := e.Start(context.Background(), "/layout?content=%2Fworkorder%2Flist"); err != nil {
		t.Fatal(err)
	}
	if e.Current() != "/workorder/list" {
		t.Errorf("Current() = %q", e.Current())
	}
	if b.Hits("/dashboard") != 0 {
		t.Error("default content should not be fetched")
	}
}

func TestStartAdoptsServerInjectedContent(t *testing.T) {
	b := newBackend(t)
	b.Layout(TestLayout("tok-1", `<section data-page-root data-page-id="dashboard">server</section>`))
	e := newEngine(t, b)

	calls := 0
	e.Pages().Register("dashboard", func(root *html.Node, ctx pages.Context) error {
		calls++
		if ctx.ContentURL != "/dashboard" {
			t.Errorf("ContentURL = %q", ctx.ContentURL)
		}
		return nil
	})

	if err := e.Start(context.Background(), "/layout"); err != nil {
		t.Fatal(err)
	}
	if b.Hits("/dashboard") != 0 {
		t.Error("server-injected content should not be refetched")
	}
	if calls != 1 {
		t.Errorf("initializer ran %d times, want 1", calls)
	}

	// A second Start neither rebinds listeners nor reinitializes the root.
	if err := e.Start(context.Background(), "/layout"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("initializer ran %d times after restart", calls)
	}
	if len(e.listeners) != 7 {
		t.Errorf("listeners = %d, want 7", len(e.listeners))
	}
}

func TestStartWithoutSlot(t *testing.T) {
	b := newBackend(t)
	b.Layout(`<html><body><div id="other"></div></body></html>`)
	e := newEngine(t, b)
	if err := e.Start(context.Background(), "/layout"); !errors.Is(err, ErrNoSlot) {
		t.Errorf("err = %v, want ErrNoSlot", err)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	b := newBackend(t)
	b.Page("/a/b", `<main>A-B</main>`)
	b.Page("/c", `<main>C</main>`)
	e := startEngine(t, b)
	ctx := context.Background()

	if err := e.Navigate(ctx, "/a/b"); err != nil {
		t.Fatal(err)
	}
	if err := e.Navigate(ctx, "/c"); err != nil {
		t.Fatal(err)
	}

	h := e.History().(*MemoryHistory)
	steps := []struct {
		move func(context.Context) error
		want string
		text string
	}{
		{e.Back, "/a/b", "A-B"},
		{e.Back, "/dashboard", "Dashboard"},
		{e.Forward, "/a/b", "A-B"},
		{e.Forward, "/c", "C"},
	}
	for i, s := range steps {
		if err := s.move(ctx); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		entry, _ := h.Current()
		if e.Current() != s.want || entry.State.Content != s.want {
			t.Errorf("step %d: Current() = %q, entry = %q, want %q", i, e.Current(), entry.State.Content, s.want)
		}
		if !strings.Contains(e.SlotHTML(), s.text) {
			t.Errorf("step %d: slot = %s", i, e.SlotHTML())
		}
	}
	if h.Len() != 3 {
		t.Errorf("history has %d entries, want 3 (popstate must not push)", h.Len())
	}

	// Forward at the end is a no-op.
	if err := e.Forward(ctx); err != nil || e.Current() != "/c" {
		t.Errorf("Forward at end: %v, %q", err, e.Current())
	}
}

func TestPopStateFallbacks(t *testing.T) {
	b := newBackend(t)
	b.Page("/plant/list", `<main>Plants</main>`)
	e := startEngine(t, b)
	ctx := context.Background()

	if err := e.PopState(ctx, Entry{URL: "/layout?content=%2Fplant%2Flist"}); err != nil {
		t.Fatal(err)
	}
	if e.Current() != "/plant/list" {
		t.Errorf("from URL: Current() = %q", e.Current())
	}
	if err := e.PopState(ctx, Entry{}); err != nil {
		t.Fatal(err)
	}
	if e.Current() != "/dashboard" {
		t.Errorf("default: Current() = %q", e.Current())
	}
}

func TestRedirectReplacesHistory(t *testing.T) {
	b := newBackend(t)
	b.Page("/c", `<main>C</main>`)
	e := startEngine(t, b)

	if err := e.Redirect(context.Background(), "/c"); err != nil {
		t.Fatal(err)
	}
	h := e.History().(*MemoryHistory)
	if h.Len() != 1 {
		t.Errorf("history has %d entries, want 1", h.Len())
	}
}

func TestTraversalNeverReachesNetwork(t *testing.T) {
	b := newBackend(t)
	e := startEngine(t, b)
	before := len(b.Requests())

	for _, target := range []string{"../../etc/passwd", "/a/%2e%2e/%2e%2e/x"} {
		err := e.Navigate(context.Background(), target)
		if !errors.Is(err, ErrTraversal) {
			t.Errorf("Navigate(%q) err = %v, want ErrTraversal", target, err)
		}
	}
	if got := len(b.Requests()); got != before {
		t.Errorf("traversal issued %d requests", got-before)
	}
	if !strings.Contains(e.SlotHTML(), `data-error-panel="security"`) {
		t.Errorf("slot = %s", e.SlotHTML())
	}
	if e.Current() != "/dashboard" {
		t.Errorf("Current() = %q, traversal must not move the pointer", e.Current())
	}
}

func TestEmptyTargetGoesToDefault(t *testing.T) {
	b := newBackend(t)
	b.Page("/c", `<main>C</main>`)
	e := startEngine(t, b)
	ctx := context.Background()

	_ = e.Navigate(ctx, "/c")
	if err := e.Navigate(ctx, "   "); err != nil {
		t.Fatal(err)
	}
	if e.Current() != "/dashboard" {
		t.Errorf("Current() = %q", e.Current())
	}
}

func TestNotFoundPanelRedirectsToDefault(t *testing.T) {
	b := newBackend(t)
	e := startEngine(t, b)

	err := e.Navigate(context.Background(), "/missing")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if !strings.Contains(e.SlotHTML(), `data-error-panel="not-found"`) {
		t.Errorf("slot = %s", e.SlotHTML())
	}

	waitFor(t, "fallback redirect", func() bool {
		return e.Current() == "/dashboard" && strings.Contains(e.SlotHTML(), "<h1>Dashboard</h1>")
	})
	cur, _ := e.History().Current()
	if cur.State.Content != "/dashboard" {
		t.Errorf("fallback should replace the failed entry, history at %q", cur.State.Content)
	}
}

func TestNotFoundRedirectSkippedAfterNewerNavigation(t *testing.T) {
	b := newBackend(t)
	b.Page("/c", `<main>C</main>`)
	e := startEngine(t, b)
	ctx := context.Background()

	_ = e.Navigate(ctx, "/missing")
	if err := e.Navigate(ctx, "/c"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if e.Current() != "/c" {
		t.Errorf("stale fallback fired: Current() = %q", e.Current())
	}
}

func TestForbiddenPanel(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"403 without guard", http.StatusForbidden, "denied"},
		{"401", http.StatusUnauthorized, "login"},
		{"message", http.StatusInternalServerError, `{"message":"Forbidden: plant scope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			b.Status(http.MethodGet, "/secret", tt.status, tt.body)
			e := startEngine(t, b)

			err := e.Navigate(context.Background(), "/secret")
			if !IsForbidden(err) {
				t.Fatalf("err = %v, want forbidden", err)
			}
			if !strings.Contains(e.SlotHTML(), `data-error-panel="forbidden"`) {
				t.Errorf("slot = %s", e.SlotHTML())
			}
			time.Sleep(60 * time.Millisecond)
			if e.Current() != "/secret" {
				t.Errorf("forbidden must not redirect, Current() = %q", e.Current())
			}
		})
	}
}

type fakeGuard struct {
	mu        sync.Mutex
	refreshes int
	recovered []error
}

func (g *fakeGuard) ReadToken() string                     { return "tok-guard" }
func (g *fakeGuard) ShouldAttachHeader(*http.Request) bool { return true }
func (g *fakeGuard) RefreshForms() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refreshes++
}
func (g *fakeGuard) ToCSRFError(resp *http.Response) error {
	return errors.New("guard: session expired")
}
func (g *fakeGuard) RecoverCSRF(ctx context.Context, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recovered = append(g.recovered, err)
}

func TestCSRFRejectionDelegatesToGuard(t *testing.T) {
	b := newBackend(t)
	b.Status(http.MethodGet, "/secret", http.StatusForbidden, "csrf")
	g := &fakeGuard{}
	e := startEngine(t, b, WithCSRFGuard(g))

	err := e.Navigate(context.Background(), "/secret")
	if !IsCSRF(err) {
		t.Fatalf("err = %v, want csrf", err)
	}
	if !strings.Contains(e.SlotHTML(), "<h1>Dashboard</h1>") || strings.Contains(e.SlotHTML(), AttrErrorPanel) {
		t.Errorf("csrf failures must not touch the slot: %s", e.SlotHTML())
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.recovered) != 1 {
		t.Errorf("RecoverCSRF called %d times", len(g.recovered))
	}
	if g.refreshes < 2 {
		t.Errorf("RefreshForms called %d times, want after every request", g.refreshes)
	}
	req, _ := b.LastRequest(http.MethodGet, "/secret")
	if req.Header.Get("X-CSRF-Token") != "tok-guard" {
		t.Errorf("token header = %q", req.Header.Get("X-CSRF-Token"))
	}
}

func TestServerErrorRetryPanel(t *testing.T) {
	b := newBackend(t)
	b.Status(http.MethodGet, "/broken", http.StatusInternalServerError, `{"message":"database unavailable"}`)
	e := startEngine(t, b)
	ctx := context.Background()

	if err := e.Navigate(ctx, "/broken"); err == nil {
		t.Fatal("expected an error")
	}
	slot := e.SlotHTML()
	if !strings.Contains(slot, `data-error-panel="retry"`) || !strings.Contains(slot, "database unavailable") {
		t.Errorf("slot = %s", slot)
	}

	b.Page("/broken", `<main>Recovered</main>`)
	var retry *html.Node
	e.WithDocument(func(doc *html.Node) { retry = dom.FindAttr(doc, AttrReload) })
	ev := e.Click(ctx, retry)
	if !ev.Handled || ev.Err != nil {
		t.Fatalf("retry click: handled=%v err=%v", ev.Handled, ev.Err)
	}
	if !strings.Contains(e.SlotHTML(), "Recovered") {
		t.Errorf("slot after retry = %s", e.SlotHTML())
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	b := newBackend(t)
	b.Page("/slow", `<main>SLOW</main>`)
	b.Page("/fast", `<main>FAST</main>`)
	release := b.Hold("/slow")
	defer release()
	e := startEngine(t, b)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() { errc <- e.Navigate(ctx, "/slow") }()
	waitFor(t, "slow request", func() bool { return b.Hits("/slow") == 1 })

	if err := e.Navigate(ctx, "/fast"); err != nil {
		t.Fatal(err)
	}
	release()

	if err := <-errc; !IsStale(err) {
		t.Errorf("superseded navigation err = %v, want ErrStale", err)
	}
	slot := e.SlotHTML()
	if !strings.Contains(slot, "FAST") || strings.Contains(slot, "SLOW") {
		t.Errorf("slot = %s", slot)
	}
	if e.Current() != "/fast" {
		t.Errorf("Current() = %q", e.Current())
	}
}

func TestCancelledNavigationKeepsPointer(t *testing.T) {
	b := newBackend(t)
	b.Page("/slow", `<main>SLOW</main>`)
	release := b.Hold("/slow")
	defer release()
	e := startEngine(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- e.Navigate(ctx, "/slow") }()
	waitFor(t, "slow request", func() bool { return b.Hits("/slow") == 1 })
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
	if e.Current() != "/dashboard" {
		t.Errorf("Current() = %q, want /dashboard", e.Current())
	}
	if cur, ok := e.History().Current(); !ok || cur.State.Content != "/dashboard" {
		t.Errorf("history current = %+v", cur)
	}
	if slot := e.SlotHTML(); !strings.Contains(slot, "Dashboard") || strings.Contains(slot, "SLOW") {
		t.Errorf("slot = %s", slot)
	}
}

type runnerFunc func(ctx context.Context, s scripts.Inline) error

func (f runnerFunc) RunInline(ctx context.Context, s scripts.Inline) error { return f(ctx, s) }

type widgetFunc func(root *html.Node)

func (f widgetFunc) InitializeContainers(root *html.Node) { f(root) }

func TestPostInjectOrderAndIsolation(t *testing.T) {
	b := newBackend(t)
	b.Script("/js/workorder.js", "// workorder module")
	b.Page("/workorder/list", `<html><head><title>Work orders</title></head><body>`+
		`<section data-page-root data-page-id="wo-list">`+
		`<form data-form-manager data-action="/api/workorders"></form></section>`+
		`<script>init()</script><script src="/js/vendor.js"></script><script type="text/template">tpl</script>`+
		`</body></html>`)

	var (
		mu    sync.Mutex
		order []string
	)
	rec := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	e := startEngine(t, b,
		WithScriptRunner(runnerFunc(func(ctx context.Context, s scripts.Inline) error {
			rec("script:" + s.Source)
			return errors.New("script failed")
		})),
		WithWidgets(
			widgetFunc(func(*html.Node) { panic("broken widget") }),
			widgetFunc(func(*html.Node) { rec("widget") }),
		),
	)
	e.Modules().Register(modules.Module{
		ID:     "workorder",
		Script: "/js/workorder.js",
		Install: func(ctx context.Context) error {
			rec("module")
			return nil
		},
	})
	e.Pages().Register("wo-list", func(root *html.Node, ctx pages.Context) error {
		rec("page")
		panic("broken page")
	})

	mu.Lock()
	order = nil
	mu.Unlock()

	ctx := context.Background()
	if err := e.Navigate(ctx, "/workorder/list"); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	got := strings.Join(order, ",")
	mu.Unlock()
	if want := "module,script:init(),page,widget"; got != want {
		t.Errorf("post-inject order = %s, want %s", got, want)
	}
	if !strings.Contains(e.SlotHTML(), AttrFormBound) {
		t.Errorf("form not bound: %s", e.SlotHTML())
	}
	if e.Title() != "Work orders | CMMS" {
		t.Errorf("Title() = %q", e.Title())
	}
	var active string
	e.WithDocument(func(doc *html.Node) {
		for _, a := range dom.FindAllTag(doc, "a") {
			if dom.HasClass(a, "active") {
				active = dom.Text(a)
			}
		}
	})
	if active != "Work orders" {
		t.Errorf("active sidebar link = %q", active)
	}

	// The module loads once; the page initializer runs again on the new root.
	if err := e.Navigate(ctx, "/workorder/list"); err != nil {
		t.Fatal(err)
	}
	if n := b.Hits("/js/workorder.js"); n != 1 {
		t.Errorf("module script fetched %d times", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if n := strings.Count(strings.Join(order, ","), "module"); n != 1 {
		t.Errorf("module installed %d times", n)
	}
	if n := strings.Count(strings.Join(order, ","), "page"); n != 2 {
		t.Errorf("page initialized %d times, want once per navigation", n)
	}
}

func TestSelectContentRoot(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"slot root", `<main>m</main><div id="s" data-slot-root><div data-page-root></div></div>`, "div"},
		{"page root", `<main>m</main><section data-page-root>p</section>`, "section"},
		{"main", `<div>x</div><main>m</main>`, "main"},
		{"body", `<div>x</div>`, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := html.Parse(strings.NewReader(tt.src))
			if err != nil {
				t.Fatal(err)
			}
			if got := SelectContentRoot(doc); got == nil || got.Data != tt.want {
				t.Errorf("SelectContentRoot() = %v, want <%s>", got, tt.want)
			}
		})
	}
}

func TestSlotRootChildrenAreInjected(t *testing.T) {
	b := newBackend(t)
	b.Page("/wrapped", `<div data-slot-root><p id="a">A</p><p id="b">B</p></div>`)
	e := startEngine(t, b)

	if err := e.Navigate(context.Background(), "/wrapped"); err != nil {
		t.Fatal(err)
	}
	slot := e.SlotHTML()
	if strings.Contains(slot, AttrSlotRoot) || !strings.Contains(slot, `<p id="a">A</p><p id="b">B</p>`) {
		t.Errorf("slot = %s", slot)
	}
}

func TestCloseRejectsNavigation(t *testing.T) {
	b := newBackend(t)
	e := startEngine(t, b)
	_ = e.Close()
	if err := e.Navigate(context.Background(), "/dashboard"); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}
