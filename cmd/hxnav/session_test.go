package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/example"
)

func newTestSession(t *testing.T, baseURL, sessionFile string) (*session, *bytes.Buffer) {
	t.Helper()
	cfg, err := example.Config(baseURL)
	if err != nil {
		t.Fatal(err)
	}
	cfg.SessionKey = "test-session-key"
	out := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	confirm := hxnav.ConfirmFunc(func(string) bool { return true })
	s, err := newSession(cfg, logger, out, confirm, sessionFile)
	if err != nil {
		t.Fatal(err)
	}
	return s, out
}

func demoServer(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(example.NewServer(example.NewStore()).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// pick returns the number of the first choice whose label has prefix.
func pick(t *testing.T, s *session, prefix string) string {
	t.Helper()
	for i, c := range s.choices {
		if strings.HasPrefix(c.label, prefix) {
			return strconv.Itoa(i + 1)
		}
	}
	t.Fatalf("no choice starting with %q in %v", prefix, s.choices)
	return ""
}

func exec(t *testing.T, s *session, line string) {
	t.Helper()
	if _, err := s.exec(context.Background(), line); err != nil {
		t.Fatalf("exec(%q): %v", line, err)
	}
}

func TestSessionBrowse(t *testing.T) {
	s, out := newTestSession(t, demoServer(t), "")
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	if err := s.start(ctx, ""); err != nil {
		t.Fatal(err)
	}
	s.render()
	if !strings.Contains(out.String(), "# Dashboard | CMMS") {
		t.Errorf("output = %s", out.String())
	}

	exec(t, s, pick(t, s, "nav: Work orders"))
	if got := s.app.Engine.Current(); got != "/workorder/list" {
		t.Fatalf("Current() = %q", got)
	}
	if !strings.Contains(out.String(), "W100") {
		t.Errorf("list not rendered: %s", out.String())
	}

	exec(t, s, pick(t, s, "open: W100"))
	if got := s.app.Engine.Current(); got != "/workorder/detail/W100" {
		t.Fatalf("Current() = %q", got)
	}

	exec(t, s, pick(t, s, "action: Close"))
	if !strings.Contains(s.app.Engine.SlotHTML(), `<dd class="status">closed</dd>`) {
		t.Errorf("slot = %s", s.app.Engine.SlotHTML())
	}

	exec(t, s, "back")
	if got := s.app.Engine.Current(); got != "/workorder/list" {
		t.Errorf("after back Current() = %q", got)
	}
	exec(t, s, "forward")
	if got := s.app.Engine.Current(); got != "/workorder/detail/W100" {
		t.Errorf("after forward Current() = %q", got)
	}

	exec(t, s, pick(t, s, "nav: Sign out"))
	if !strings.Contains(out.String(), "native navigation: http://") || !strings.Contains(out.String(), "/logout\n") {
		t.Errorf("logout not handed to the window: %s", out.String())
	}
}

func TestSessionSubmitForm(t *testing.T) {
	s, _ := newTestSession(t, demoServer(t), "")
	t.Cleanup(func() { _ = s.Close() })
	if err := s.start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}

	exec(t, s, "go /workorder/new")
	exec(t, s, "set title=Replace pump seal")
	exec(t, s, "set plant=P2")
	exec(t, s, "set items[0].name=Seal kit")
	exec(t, s, pick(t, s, "submit form"))

	if got := s.app.Engine.Current(); got != "/workorder/detail/W103" {
		t.Fatalf("Current() = %q", got)
	}
	slot := s.app.Engine.SlotHTML()
	for _, want := range []string{"Replace pump seal", "P2", "Seal kit"} {
		if !strings.Contains(slot, want) {
			t.Errorf("slot missing %q: %s", want, slot)
		}
	}
}

func TestSessionCommandErrors(t *testing.T) {
	s, _ := newTestSession(t, demoServer(t), "")
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	if err := s.start(ctx, ""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		line    string
		wantErr string
	}{
		{"frobnicate", "unknown command"},
		{"99", "no target 99"},
		{"go", "go needs a target"},
		{"set title", "usage: set"},
		{"set nosuchfield=1", `no field "nosuchfield"`},
		{"go ../../secret", "traversal"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := s.exec(ctx, tt.line)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("exec(%q) = %v, want %q", tt.line, err, tt.wantErr)
			}
		})
	}

	quit, err := s.exec(ctx, "quit")
	if err != nil || !quit {
		t.Errorf("quit = %v, %v", quit, err)
	}
}

func TestSessionResume(t *testing.T) {
	base := demoServer(t)
	file := filepath.Join(t.TempDir(), "session")
	ctx := context.Background()

	s, _ := newTestSession(t, base, file)
	if err := s.start(ctx, ""); err != nil {
		t.Fatal(err)
	}
	exec(t, s, "go /workorder/list")
	exec(t, s, "go /workorder/detail/W101")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(file); err != nil {
		t.Fatalf("session not saved: %v", err)
	}

	resumed, _ := newTestSession(t, base, file)
	t.Cleanup(func() { _ = resumed.Close() })
	if err := resumed.start(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if got := resumed.app.Engine.Current(); got != "/workorder/detail/W101" {
		t.Fatalf("resumed Current() = %q", got)
	}
	exec(t, resumed, "back")
	if got := resumed.app.Engine.Current(); got != "/workorder/list" {
		t.Errorf("after back Current() = %q", got)
	}
}

func TestSessionIgnoresTamperedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "session")
	if err := os.WriteFile(file, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, _ := newTestSession(t, demoServer(t), file)
	t.Cleanup(func() { _ = s.Close() })
	if err := s.start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if got := s.app.Engine.Current(); got != "/dashboard" {
		t.Errorf("Current() = %q", got)
	}
}

func TestRendererMarkdown(t *testing.T) {
	r := newRenderer("http://localhost:8080")
	got := r.Markdown(`<h1>Work orders</h1><script>alert(1)</script><p>See <a href="/workorder/list">the list</a></p>`)
	if !strings.Contains(got, "# Work orders") {
		t.Errorf("heading missing: %q", got)
	}
	if strings.Contains(got, "alert") {
		t.Errorf("script survived: %q", got)
	}
	if !strings.Contains(got, "[the list](http://localhost:8080/workorder/list)") {
		t.Errorf("link not absolutized: %q", got)
	}
}
