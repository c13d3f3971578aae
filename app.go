package hxnav

import (
	"context"

	"github.com/pthm/hxnav/lib/config"
	"github.com/pthm/hxnav/lib/csrf"
	"github.com/pthm/hxnav/lib/modules"
	"github.com/pthm/hxnav/lib/pages"
	"github.com/pthm/hxnav/lib/scripts"
)

// App is the application context: one Engine with its Page Registry and
// Module Loader, plus the default collaborators. Nothing is global, so
// independent Apps can coexist (one per test, one per CLI session).
type App struct {
	Config  *config.Config
	Engine  *Engine
	Pages   *pages.Registry
	Modules *modules.Loader

	// Scripts is the embedded script runner, set when inline scripts are
	// enabled in the configuration and no runner was supplied.
	Scripts *scripts.Runner
}

// New builds an App. On top of NewEngine it installs, unless overridden:
// the lib/csrf guard (recovering with a full Window reload), a
// FlashNotifier writing into #toasts and, with InlineScripts enabled, the
// goja script runner.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	e, err := NewEngine(cfg, opts...)
	if err != nil {
		return nil, err
	}

	if e.guard == nil && !e.noGuard {
		e.guard = csrf.New(e,
			csrf.WithOrigin(e.cfg.BaseURL),
			csrf.WithLogger(e.logger),
			csrf.WithRecovery(e.reloadWindow),
		)
	}
	if e.notifier == nil {
		e.notifier = NewFlashNotifier(e, e.logger)
	}

	app := &App{
		Config:  e.cfg,
		Engine:  e,
		Pages:   e.pages,
		Modules: e.loader,
	}
	if e.scripts == nil && e.cfg.InlineScripts {
		r := scripts.New(e.pages, scripts.WithLogger(e.logger))
		e.scripts = r
		e.loader.SetRunner(r)
		app.Scripts = r
	}
	return app, nil
}

// Start mounts the layout at visibleURL (the configured layout path when
// empty) and shows the initial content.
func (a *App) Start(ctx context.Context, visibleURL string) error {
	return a.Engine.Start(ctx, visibleURL)
}

// Register adds a page initializer.
func (a *App) Register(id string, fn pages.InitFunc) {
	a.Pages.Register(id, fn)
}

// RegisterModule maps a route prefix to its script.
func (a *App) RegisterModule(m modules.Module) {
	a.Modules.Register(m)
}

// Close releases the engine.
func (a *App) Close() error {
	return a.Engine.Close()
}

func (e *Engine) reloadWindow(ctx context.Context, err error) {
	if e.window == nil {
		e.logger.Warn("hxnav: csrf recovery needs a window reload", "error", err)
		return
	}
	e.window.Reload()
}
