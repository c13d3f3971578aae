package hxnav

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestPanels(t *testing.T) {
	tests := []struct {
		name    string
		c       templ.Component
		want    []string
		wantNot []string
	}{
		{
			name: "not found",
			c:    NotFoundPanel("/dashboard", 3*time.Second),
			want: []string{`data-error-panel="not-found"`, "redirected in 3s", `href="/dashboard"`},
		},
		{
			name:    "forbidden",
			c:       ForbiddenPanel("/dashboard"),
			want:    []string{`data-error-panel="forbidden"`, "permission", `href="/dashboard"`},
			wantNot: []string{AttrReload, "redirected"},
		},
		{
			name: "retry",
			c:    RetryPanel("/dashboard", `<b>"boom"</b>`),
			want: []string{`data-error-panel="retry"`, "could not be loaded. &lt;b&gt;&#34;boom&#34;&lt;/b&gt;", AttrReload + ">Retry</button>"},
		},
		{
			name:    "security",
			c:       SecurityPanel(),
			want:    []string{`data-error-panel="security"`, "security reasons"},
			wantNot: []string{AttrReload, "href="},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderString(t, tt.c)
			if !strings.HasPrefix(got, "<section") || !strings.HasSuffix(got, "</section>") {
				t.Errorf("panel not wrapped in a section: %s", got)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("missing %q in %s", w, got)
				}
			}
			for _, w := range tt.wantNot {
				if strings.Contains(got, w) {
					t.Errorf("unexpected %q in %s", w, got)
				}
			}
		})
	}
}

func TestFailureDetail(t *testing.T) {
	long := strings.Repeat("x", maxDetail+10)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "  ", ""},
		{"json message", `{"message":"title is required"}`, "title is required"},
		{"json error", `{"error":"work order is in use"}`, "work order is in use"},
		{"html", "<html><body><h1>Bad   Gateway</h1>\n<p>upstream down</p></body></html>", "Bad Gateway upstream down"},
		{"script and entities", `<html><body><h1>Server Error</h1><script>x()</script><p>try &amp; retry</p></body></html>`, "Server Error try & retry"},
		{"broken json", `{"message":`, `{"message":`},
		{"truncated", long, strings.Repeat("x", maxDetail) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := failureDetail([]byte(tt.body)); got != tt.want {
				t.Errorf("failureDetail() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSharedPrefix(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"/workorder/detail/W1", "/workorder/list", 1},
		{"/inspection/list.html", "/inspection/list", 2},
		{"/plant/list?x=1", "/workorder/list", 0},
		{"/", "/dashboard", 0},
	}
	for _, tt := range tests {
		if got := sharedPrefix(segments(tt.a), segments(tt.b)); got != tt.want {
			t.Errorf("sharedPrefix(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
