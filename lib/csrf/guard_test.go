package csrf

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/pthm/hxnav/lib/dom"
	"golang.org/x/net/html"
)

type staticDoc struct{ doc *html.Node }

func (s *staticDoc) WithDocument(fn func(*html.Node)) { fn(s.doc) }

func layout(t *testing.T, src string) *staticDoc {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	return &staticDoc{doc: doc}
}

func TestReadTokenFromMeta(t *testing.T) {
	d := layout(t, `<html><head><meta name="csrf-token" content="tok-1"></head><body></body></html>`)
	g := New(d)
	if got := g.ReadToken(); got != "tok-1" {
		t.Errorf("ReadToken = %q", got)
	}
}

func TestReadTokenFromHiddenField(t *testing.T) {
	d := layout(t, `<form><input type="hidden" name="csrf_token" value="tok-2"></form>`)
	if got := New(d).ReadToken(); got != "tok-2" {
		t.Errorf("ReadToken = %q", got)
	}
	if got := New(layout(t, `<p>none</p>`)).ReadToken(); got != "" {
		t.Errorf("ReadToken without token = %q", got)
	}
}

func TestShouldAttachHeader(t *testing.T) {
	g := New(nil, WithOrigin("http://cmms.local:8080"))
	req := func(raw string) *http.Request {
		u, _ := url.Parse(raw)
		return &http.Request{URL: u}
	}
	if g.ShouldAttachHeader(req("http://cmms.local:8080/x")) {
		t.Error("no token: header must not be attached")
	}
	g.SetToken("t")
	tests := []struct {
		url  string
		want bool
	}{
		{"http://cmms.local:8080/api/workorders", true},
		{"/relative", true},
		{"http://evil.example/x", false},
		{"https://cmms.local:8080/x", false},
	}
	for _, tt := range tests {
		if got := g.ShouldAttachHeader(req(tt.url)); got != tt.want {
			t.Errorf("ShouldAttachHeader(%s) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestRefreshFormsAndRotation(t *testing.T) {
	d := layout(t, `<html><head><meta name="csrf-token" content="old"></head>
		<body><form><input type="hidden" name="csrf_token" value="old"></form></body></html>`)
	g := New(d)
	g.ReadToken()

	fetched, _ := html.Parse(strings.NewReader(`<meta name="csrf-token" content="new">`))
	g.ObserveDocument(fetched)
	g.RefreshForms()

	for _, in := range dom.FindAllTag(d.doc, "input") {
		if v := dom.AttrOr(in, "value", ""); v != "new" {
			t.Errorf("hidden field = %q, want new", v)
		}
	}
	if TokenFrom(d.doc) != "new" {
		t.Errorf("meta not refreshed: %q", TokenFrom(d.doc))
	}
}

func TestToCSRFErrorAndRecovery(t *testing.T) {
	var recovered error
	g := New(nil, WithRecovery(func(ctx context.Context, err error) { recovered = err }))
	u, _ := url.Parse("http://h/x")
	err := g.ToCSRFError(&http.Response{StatusCode: http.StatusForbidden, Request: &http.Request{URL: u}})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	var ce *Error
	if !errors.As(err, &ce) || ce.URL != "http://h/x" {
		t.Errorf("error details = %+v", ce)
	}
	g.RecoverCSRF(context.Background(), err)
	if recovered != err {
		t.Error("recovery hook not called")
	}
}
