// Package scripts runs the legacy inline and module scripts that server
// partials still carry, inside an embedded goja runtime.
//
// Only a small browser surface is provided: console, document/window
// addEventListener (ready events fire immediately because partials arrive
// after the outer document loaded) and cmms.pages.register, which bridges
// script initializers into the page registry. New page behavior should be
// written as Go initializers instead.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/pthm/hxnav/lib/dom"
	"github.com/pthm/hxnav/lib/pages"
	"golang.org/x/net/html"
)

// Inline is one inline <script> of a fetched document.
type Inline struct {
	// Index is the script's position among the document's inline scripts.
	Index int

	Source     string
	ContentURL string
}

// Registrar receives initializers registered from scripts.
type Registrar interface {
	Register(id string, fn pages.InitFunc)
}

// readyEvents fire immediately when a listener is added.
var readyEvents = map[string]bool{
	"DOMContentLoaded": true,
	"load":             true,
}

// Runner owns one goja runtime. Calls are serialized.
type Runner struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	reg     Registrar
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds a single script execution.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a runner whose cmms.pages.register calls land in reg.
func New(reg Registrar, opts ...Option) *Runner {
	r := &Runner{
		vm:      goja.New(),
		reg:     reg,
		timeout: 5 * time.Second,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	r.install()
	return r
}

func (r *Runner) install() {
	console := r.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		level := level
		_ = console.Set(level, func(call goja.FunctionCall) goja.Value {
			args := make([]any, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				args = append(args, a.String())
			}
			r.logger.Info("scripts: console", "level", level, "args", args)
			return goja.Undefined()
		})
	}

	addListener := func(call goja.FunctionCall) goja.Value {
		event := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			return goja.Undefined()
		}
		if !readyEvents[event] {
			r.logger.Debug("scripts: ignoring listener", "event", event)
			return goja.Undefined()
		}
		if _, err := fn(goja.Undefined()); err != nil {
			var ex *goja.Exception
			if errors.As(err, &ex) {
				panic(ex.Value())
			}
			panic(r.vm.NewGoError(err))
		}
		return goja.Undefined()
	}

	document := r.vm.NewObject()
	_ = document.Set("readyState", "complete")
	_ = document.Set("addEventListener", addListener)

	pagesObj := r.vm.NewObject()
	_ = pagesObj.Set("register", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok || id == "" || r.reg == nil {
			return goja.Undefined()
		}
		r.reg.Register(id, r.bridge(id, fn))
		return goja.Undefined()
	})
	cmms := r.vm.NewObject()
	_ = cmms.Set("pages", pagesObj)

	global := r.vm.GlobalObject()
	_ = global.Set("addEventListener", addListener)
	_ = r.vm.Set("window", global)
	_ = r.vm.Set("self", global)
	_ = r.vm.Set("console", console)
	_ = r.vm.Set("document", document)
	_ = r.vm.Set("cmms", cmms)
}

// bridge wraps a script initializer as a page initializer.
func (r *Runner) bridge(id string, fn goja.Callable) pages.InitFunc {
	return func(root *html.Node, pctx pages.Context) error {
		return r.run(pctx, "page:"+id, func() error {
			_, err := fn(goja.Undefined(), r.wrapRoot(root, id, pctx.ContentURL))
			return err
		})
	}
}

func (r *Runner) wrapRoot(root *html.Node, id, contentURL string) goja.Value {
	obj := r.vm.NewObject()
	_ = obj.Set("pageId", id)
	_ = obj.Set("contentUrl", contentURL)
	_ = obj.Set("tagName", root.Data)
	_ = obj.Set("textContent", dom.Text(root))
	_ = obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		if v, ok := dom.Attr(root, call.Argument(0).String()); ok {
			return r.vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		dom.SetAttr(root, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	return obj
}

// Run executes src under name.
func (r *Runner) Run(ctx context.Context, name, src string) error {
	return r.run(ctx, name, func() error {
		_, err := r.vm.RunScript(name, src)
		return err
	})
}

// RunInline executes one inline script of a fetched partial.
func (r *Runner) RunInline(ctx context.Context, s Inline) error {
	return r.Run(ctx, fmt.Sprintf("%s#script%d", s.ContentURL, s.Index), s.Source)
}

// RunModule executes a module bundle fetched by the module loader.
func (r *Runner) RunModule(ctx context.Context, moduleID, scriptURL string, src []byte) error {
	return r.Run(ctx, scriptURL, string(src))
}

func (r *Runner) run(ctx context.Context, name string, fn func() error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	stop := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		<-exited
		r.vm.ClearInterrupt()
	}()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scripts: %s panicked: %v", name, p)
		}
	}()

	if err := fn(); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return fmt.Errorf("scripts: %s interrupted: %w", name, ctx.Err())
		}
		return fmt.Errorf("scripts: %s: %w", name, err)
	}
	return nil
}
