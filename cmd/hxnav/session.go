package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/lib/config"
	"github.com/pthm/hxnav/lib/dom"
	"github.com/pthm/hxnav/lib/encoding"
	"golang.org/x/net/html"
)

const helpText = `commands:
  <n>              click target n (submits forms)
  go <target>      navigate to a content URL
  set name=value   fill a field in the current page
  back, forward    traverse history
  reload           reload the current content
  help             show this help
  quit             leave the session`

// choice is one numbered thing the user can act on.
type choice struct {
	node  *html.Node
	form  bool
	label string
}

// session is one interactive browse run. It is the App's Window.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	out      io.Writer
	confirm  hxnav.Confirmer
	renderer *renderer

	app     *hxnav.App
	history *hxnav.MemoryHistory
	choices []choice

	codec       *encoding.Codec
	sessionFile string

	needsReload bool
}

func newSession(cfg *config.Config, logger *slog.Logger, out io.Writer, confirm hxnav.Confirmer, sessionFile string) (*session, error) {
	s := &session{
		cfg:         cfg,
		logger:      logger,
		out:         out,
		confirm:     confirm,
		renderer:    newRenderer(cfg.BaseURL),
		history:     hxnav.NewMemoryHistory(),
		sessionFile: sessionFile,
	}
	if sessionFile != "" && cfg.SessionKey == "" {
		logger.Warn("browse: session_key not set, history will not be saved", "path", sessionFile)
	}
	if sessionFile != "" && cfg.SessionKey != "" {
		codec, err := encoding.NewCodec([]byte(cfg.SessionKey))
		if err != nil {
			return nil, err
		}
		s.codec = codec
		s.restore()
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) restore() {
	data, err := os.ReadFile(s.sessionFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("browse: reading session", "path", s.sessionFile, "error", err)
		}
		return
	}
	h, err := hxnav.RestoreHistory(s.codec, strings.TrimSpace(string(data)))
	if err != nil {
		s.logger.Warn("browse: ignoring session", "path", s.sessionFile, "error", err)
		return
	}
	s.history = h
}

func (s *session) build() error {
	app, err := hxnav.New(s.cfg,
		hxnav.WithLogger(s.logger),
		hxnav.WithConfirmer(s.confirm),
		hxnav.WithWindow(s),
		hxnav.WithHistory(s.history),
	)
	if err != nil {
		return err
	}
	s.app = app
	return nil
}

// start mounts the layout. An empty visibleURL resumes the restored
// session, or opens the configured layout.
func (s *session) start(ctx context.Context, visibleURL string) error {
	if visibleURL == "" {
		if entry, ok := s.history.Current(); ok {
			visibleURL = entry.URL
		}
	}
	return s.app.Start(ctx, visibleURL)
}

// Assign implements hxnav.Window.
func (s *session) Assign(url string) {
	fmt.Fprintf(s.out, "native navigation: %s\n", url)
}

// Reload implements hxnav.Window. The layout is remounted after the
// current command finishes.
func (s *session) Reload() {
	s.needsReload = true
}

func (s *session) remount(ctx context.Context) error {
	s.needsReload = false
	current := s.app.Engine.Current()
	if err := s.app.Close(); err != nil {
		return err
	}
	if err := s.build(); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "reloading layout")
	return s.app.Start(ctx, hxnav.VisibleURL(s.cfg.LayoutPath, s.cfg.ContentParam, current))
}

// Close saves the session history and releases the engine.
func (s *session) Close() error {
	var errs []error
	if s.codec != nil {
		if err := s.save(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.app.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *session) save() error {
	sealed, err := s.history.Snapshot(s.codec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.sessionFile, []byte(sealed+"\n"), 0o600); err != nil {
		return fmt.Errorf("browse: saving session: %w", err)
	}
	return nil
}

// exec runs one command line and renders the result.
func (s *session) exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		s.render()
		return false, nil
	}

	engine := s.app.Engine
	switch fields[0] {
	case "q", "quit", "exit":
		return true, nil
	case "help", "?":
		fmt.Fprintln(s.out, helpText)
		return false, nil
	case "back":
		err = engine.Back(ctx)
	case "forward":
		err = engine.Forward(ctx)
	case "reload":
		err = engine.Reload(ctx)
	case "go":
		if len(fields) < 2 {
			return false, errors.New("go needs a target")
		}
		err = engine.Navigate(ctx, fields[1])
	case "set":
		name, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "set")), "=")
		if !ok {
			return false, errors.New("usage: set name=value")
		}
		return false, s.setField(strings.TrimSpace(name), value)
	default:
		n, convErr := strconv.Atoi(fields[0])
		if convErr != nil {
			return false, fmt.Errorf("unknown command %q, try help", fields[0])
		}
		if n < 1 || n > len(s.choices) {
			return false, fmt.Errorf("no target %d", n)
		}
		c := s.choices[n-1]
		var ev *hxnav.Event
		if c.form {
			ev = engine.Submit(ctx, c.node)
		} else {
			ev = engine.Click(ctx, c.node)
		}
		err = ev.Err
	}

	if s.needsReload {
		if rerr := s.remount(ctx); rerr != nil {
			return false, rerr
		}
	}
	s.render()
	if hxnav.IsStale(err) {
		err = nil
	}
	return false, err
}

// setField fills every field named name in the slot.
func (s *session) setField(name, value string) error {
	count := 0
	s.app.Engine.WithDocument(func(doc *html.Node) {
		slot := dom.ByID(doc, hxnav.SlotID)
		if slot == nil {
			return
		}
		dom.Walk(slot, func(n *html.Node) bool {
			if n.Type != html.ElementNode || dom.AttrOr(n, "name", "") != name {
				return true
			}
			count++
			switch n.Data {
			case "textarea":
				dom.SetText(n, value)
			case "select":
				for _, opt := range dom.FindAllTag(n, "option") {
					if dom.AttrOr(opt, "value", dom.Text(opt)) == value {
						dom.SetAttr(opt, "selected", "")
					} else {
						dom.RemoveAttr(opt, "selected")
					}
				}
			default:
				switch dom.AttrOr(n, "type", "text") {
				case "checkbox", "radio":
					if dom.AttrOr(n, "value", "on") == value {
						dom.SetAttr(n, "checked", "")
					} else {
						dom.RemoveAttr(n, "checked")
					}
				default:
					dom.SetAttr(n, "value", value)
				}
			}
			return true
		})
	})
	if count == 0 {
		return fmt.Errorf("no field %q", name)
	}
	return nil
}

// render prints the title, the slot as markdown and the numbered choices.
func (s *session) render() {
	var choices []choice
	s.app.Engine.WithDocument(func(doc *html.Node) {
		choices = collectChoices(doc)
	})
	s.choices = choices

	fmt.Fprintf(s.out, "\n# %s\n(%s)\n\n", s.app.Engine.Title(), s.app.Engine.Current())
	if md := s.renderer.Markdown(s.app.Engine.SlotHTML()); md != "" {
		fmt.Fprintln(s.out, md)
		fmt.Fprintln(s.out)
	}
	for i, c := range choices {
		fmt.Fprintf(s.out, "[%d] %s\n", i+1, c.label)
	}
}

// collectChoices lists sidebar links followed by the slot's interactive
// elements in document order.
func collectChoices(doc *html.Node) []choice {
	var out []choice
	for _, nav := range dom.FindAllAttr(doc, hxnav.AttrSidebar) {
		for _, a := range dom.FindAllTag(nav, "a") {
			if href, ok := dom.Attr(a, "href"); ok {
				out = append(out, choice{node: a, label: "nav: " + label(a) + " -> " + href})
			}
		}
	}
	slot := dom.ByID(doc, hxnav.SlotID)
	if slot == nil {
		return out
	}
	dom.Walk(slot, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch {
		case dom.HasAttr(n, hxnav.AttrFormManager):
			out = append(out, choice{node: n, form: true,
				label: "submit form -> " + dom.AttrOr(n, hxnav.AttrFormAction, dom.AttrOr(n, "action", ""))})
		case dom.HasAttr(n, hxnav.AttrDeleteURL):
			out = append(out, choice{node: n, label: "delete: " + label(n)})
		case dom.HasAttr(n, hxnav.AttrActionURL):
			out = append(out, choice{node: n, label: "action: " + label(n)})
		case dom.HasAttr(n, hxnav.AttrReload):
			out = append(out, choice{node: n, label: "retry: " + label(n)})
		case dom.HasAttr(n, hxnav.AttrNavigate):
			out = append(out, choice{node: n, label: "open: " + label(n) + " -> " + dom.AttrOr(n, hxnav.AttrNavigate, "")})
		case n.Data == "a" && dom.HasAttr(n, "href"):
			out = append(out, choice{node: n, label: "link: " + label(n) + " -> " + dom.AttrOr(n, "href", "")})
		}
		return true
	})
	return out
}

func label(n *html.Node) string {
	text := strings.Join(strings.Fields(dom.Text(n)), " ")
	if len(text) > 60 {
		text = text[:57] + "..."
	}
	if text == "" {
		text = "(no text)"
	}
	return text
}
