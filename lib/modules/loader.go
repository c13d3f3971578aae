// Package modules lazily loads one script bundle per route prefix.
//
// A module is identified by the first path segment of a content URL
// ("/workorder/list" -> "workorder"). Each script URL is fetched and
// executed at most once per Loader; concurrent callers for the same script
// wait on the same in-flight load.
package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// State is the load state of one script URL.
type State int

const (
	Unloaded State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrNoFetcher is returned when a mapped module is loaded without a Fetcher.
var ErrNoFetcher = errors.New("modules: no script fetcher configured")

// Module maps a route prefix to its script.
type Module struct {
	// ID is the first path segment this module serves.
	ID string

	// Script is the script URL fetched on first use.
	Script string

	// Install runs after the script was fetched (and run, when a Runner is
	// configured). Modules written in Go register their page initializers
	// here.
	Install func(ctx context.Context) error
}

// Fetcher retrieves a script body.
type Fetcher interface {
	FetchScript(ctx context.Context, scriptURL string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, scriptURL string) ([]byte, error)

// FetchScript calls f.
func (f FetcherFunc) FetchScript(ctx context.Context, scriptURL string) ([]byte, error) {
	return f(ctx, scriptURL)
}

// Runner executes a fetched script body.
type Runner interface {
	RunModule(ctx context.Context, moduleID, scriptURL string, src []byte) error
}

type entry struct {
	state State
	done  chan struct{}
	err   error
}

// Loader tracks module definitions and per-script load state.
type Loader struct {
	mu      sync.Mutex
	modules map[string]Module
	scripts map[string]*entry
	fetcher Fetcher
	runner  Runner
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithFetcher sets the script fetcher.
func WithFetcher(f Fetcher) Option {
	return func(l *Loader) { l.fetcher = f }
}

// WithRunner sets the runner used to execute script bodies.
func WithRunner(r Runner) Option {
	return func(l *Loader) { l.runner = r }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		modules: make(map[string]Module),
		scripts: make(map[string]*entry),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// SetFetcher replaces the fetcher. Used by the engine, which owns the HTTP
// client, after construction.
func (l *Loader) SetFetcher(f Fetcher) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetcher = f
}

// SetRunner replaces the script runner.
func (l *Loader) SetRunner(r Runner) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runner = r
}

// Register adds or replaces a module definition.
func (l *Loader) Register(m Module) {
	if m.ID == "" || m.Script == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[m.ID] = m
}

// Modules returns the registered module ids in sorted order.
func (l *Loader) Modules() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.modules))
	for id := range l.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// State returns the load state of a script URL.
func (l *Loader) State(scriptURL string) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.scripts[scriptURL]; ok {
		return e.state
	}
	return Unloaded
}

// ModuleID extracts the module id (first path segment) of a content URL.
func ModuleID(contentURL string) string {
	p := contentURL
	if u, err := url.Parse(contentURL); err == nil {
		p = u.Path
	}
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return strings.TrimSuffix(p, ".html")
}

// Load ensures the module serving contentURL is loaded. Unmapped routes are
// a no-op. A failed load is terminal for that script and its error is
// returned to every later caller; callers log it and carry on.
func (l *Loader) Load(ctx context.Context, contentURL string) error {
	id := ModuleID(contentURL)

	l.mu.Lock()
	m, ok := l.modules[id]
	if !ok {
		l.mu.Unlock()
		return nil
	}
	e, exists := l.scripts[m.Script]
	if exists {
		l.mu.Unlock()
		return l.wait(ctx, contentURL, m, e)
	}
	e = &entry{state: Loading, done: make(chan struct{})}
	l.scripts[m.Script] = e
	fetcher, runner := l.fetcher, l.runner
	l.mu.Unlock()

	err := l.execute(ctx, m, fetcher, runner)

	l.mu.Lock()
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The caller gave up; the script itself did not fail.
		e.state, e.err = Unloaded, err
		delete(l.scripts, m.Script)
	case err != nil:
		e.state, e.err = Failed, err
	default:
		e.state = Loaded
	}
	close(e.done)
	l.mu.Unlock()

	if err != nil {
		l.logger.Error("modules: load failed", "module", m.ID, "script", m.Script, "error", err)
		return err
	}
	l.logger.Debug("modules: loaded", "module", m.ID, "script", m.Script)
	return nil
}

// wait blocks until the in-flight load e settles. A load abandoned by its
// own caller is retried by a waiter that is still live.
func (l *Loader) wait(ctx context.Context, contentURL string, m Module, e *entry) error {
	select {
	case <-e.done:
	case <-ctx.Done():
		return fmt.Errorf("modules: wait for %s: %w", m.ID, ctx.Err())
	}
	l.mu.Lock()
	abandoned, err := e.state == Unloaded, e.err
	l.mu.Unlock()
	if abandoned && ctx.Err() == nil {
		return l.Load(ctx, contentURL)
	}
	return err
}

func (l *Loader) execute(ctx context.Context, m Module, fetcher Fetcher, runner Runner) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("modules: %s panicked: %v", m.ID, p)
		}
	}()
	if fetcher == nil {
		return ErrNoFetcher
	}
	src, err := fetcher.FetchScript(ctx, m.Script)
	if err != nil {
		return fmt.Errorf("modules: fetch %s: %w", m.Script, err)
	}
	if runner != nil {
		if err := runner.RunModule(ctx, m.ID, m.Script, src); err != nil {
			return fmt.Errorf("modules: run %s: %w", m.Script, err)
		}
	}
	if m.Install != nil {
		if err := m.Install(ctx); err != nil {
			return fmt.Errorf("modules: install %s: %w", m.ID, err)
		}
	}
	return nil
}
