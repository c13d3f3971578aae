package hxnav

import (
	"net/url"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		current string
		want    string
	}{
		{"html relative to content dir", "list.html", "/inspection/detail/edit.html", "/inspection/list.html"},
		{"html sibling dir", "detail/view.html?id=3", "/plant/list.html", "/detail/view.html?id=3"},
		{"html parent", "../list.html", "/a/b/c/edit.html", "/a/list.html"},
		{"root relative unchanged", "/api/foo", "/x/y", "/api/foo"},
		{"bracket template", "@{/domain/company/list}", "/dashboard", "/domain/company/list"},
		{"absolute unchanged", "https://example.com/a", "/x", "https://example.com/a"},
		{"app route normalized", "workorder/list", "/inspection/detail/edit.html", "/workorder/list"},
		{"app route keeps query", "workorder/list?page=2", "/x", "/workorder/list?page=2"},
		{"app route cleaned", "workorder/./list", "/x", "/workorder/list"},
		{"no current", "list.html", "", "/list.html"},
		{"empty", "", "/x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.target, tt.current)
			if got != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.target, tt.current, got, tt.want)
			}
			if again := Resolve(tt.target, tt.current); again != got {
				t.Errorf("Resolve is not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestResolveMalformedReturnsInput(t *testing.T) {
	in := "bad%zz.html"
	if got := Resolve(in, "/a/b.html"); got != in {
		t.Errorf("Resolve(%q) = %q, want input unchanged", in, got)
	}
}

func TestHasTraversal(t *testing.T) {
	tests := []struct {
		target string
		want   bool
	}{
		{"../list.html", false},
		{"../../etc/passwd", true},
		{"/a/../../b", true},
		{"%2e%2e/%2E%2E/secret", true},
		{"%252e%252e/%252e%252e/x", true},
		{"..\\..\\win", true},
		{"/workorder/list", false},
		{"/a..b/c..d", false},
		{"/ok?next=../../x", false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := HasTraversal(tt.target); got != tt.want {
				t.Errorf("HasTraversal(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestIsBypassed(t *testing.T) {
	origin, _ := url.Parse("http://cmms.local")
	tests := []struct {
		href string
		want bool
	}{
		{"/workorder/list", false},
		{"list.html", false},
		{"http://cmms.local/plant/list", false},
		{"https://other.example/x", true},
		{"//other.example/x", true},
		{"mailto:ops@example.com", true},
		{"tel:123", true},
		{"javascript:void(0)", true},
		{"#top", true},
		{"", true},
		{"/logout", true},
		{"/login?next=/x", true},
		{"/auth/callback", true},
		{"/files/report.pdf", true},
		{"/api/files/9", true},
		{"files/report.pdf", true},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			if got := IsBypassed(tt.href, origin, DefaultBypassPrefixes); got != tt.want {
				t.Errorf("IsBypassed(%q) = %v, want %v", tt.href, got, tt.want)
			}
		})
	}
}

func TestVisibleURLRoundTrip(t *testing.T) {
	content := "/workorder/detail/W1?tab=parts"
	visible := VisibleURL("/layout", "content", content)
	if got := ContentFromURL(visible, "content"); got != content {
		t.Errorf("ContentFromURL(%q) = %q, want %q", visible, got, content)
	}
	if got := ContentFromURL("/layout", "content"); got != "" {
		t.Errorf("missing param = %q", got)
	}
}
