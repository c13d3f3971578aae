package hxnav

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pthm/hxnav/lib/csrf"
	"github.com/pthm/hxnav/lib/dom"
	"github.com/pthm/hxnav/lib/scripts"
	"golang.org/x/net/html"
)

// maxBodySize caps every response body the engine reads.
const maxBodySize = 10 << 20

// maxDetail is the longest failure detail shown to the user.
const maxDetail = 200

var detailPolicy = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// page is a fetched content document, mined for what injection needs.
type page struct {
	root *html.Node

	// unwrap injects root's children instead of root itself (body,
	// document and explicit slot roots are containers).
	unwrap bool

	scripts []scripts.Inline
	title   string
}

// newRequest builds a request for target relative to the base URL, with
// the XHR marker and, when the guard allows it, the CSRF header.
func (e *Engine) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("hxnav: parse %q: %w", target, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.base.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, fmt.Errorf("hxnav: request %s %s: %w", method, target, err)
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if e.guard != nil && e.guard.ShouldAttachHeader(req) {
		req.Header.Set(csrf.HeaderName, e.guard.ReadToken())
	}
	return req, nil
}

// do sends req and reads the (capped) body. Non-2xx statuses become
// errors: 403 is a CSRF rejection when a guard is configured, everything
// else a *StatusError. The guard re-syncs form tokens after every call.
func (e *Engine) do(req *http.Request) ([]byte, error) {
	if e.guard != nil {
		defer e.guard.RefreshForms()
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hxnav: %s %s: %w: %w", req.Method, req.URL.Path, ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("hxnav: read %s: %w: %w", req.URL.Path, ErrFetchFailed, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	if resp.StatusCode == http.StatusForbidden && e.guard != nil {
		return body, fmt.Errorf("hxnav: %s %s: %w: %w", req.Method, req.URL.Path, ErrCSRF, e.guard.ToCSRFError(resp))
	}
	return body, &StatusError{
		URL:    req.URL.RequestURI(),
		Status: resp.StatusCode,
		Detail: failureDetail(body),
	}
}

// fetchPage GETs a content URL and prepares it for injection.
func (e *Engine) fetchPage(ctx context.Context, contentURL string) (*page, error) {
	req, err := e.newRequest(ctx, http.MethodGet, contentURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	body, err := e.do(req)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("hxnav: parse %s: %w: %w", contentURL, ErrFetchFailed, err)
	}
	if obs, ok := e.guard.(DocumentObserver); ok {
		obs.ObserveDocument(doc)
	}

	root := SelectContentRoot(doc)
	return &page{
		root:    root,
		unwrap:  isContainer(root),
		scripts: inlineScripts(doc, contentURL),
		title:   strings.TrimSpace(dom.Text(dom.FindTag(doc, "title"))),
	}, nil
}

// fetchLayout GETs the full layout page.
func (e *Engine) fetchLayout(ctx context.Context, visibleURL string) (*html.Node, error) {
	req, err := e.newRequest(ctx, http.MethodGet, visibleURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Del("X-Requested-With")
	req.Header.Set("Accept", "text/html")

	body, err := e.do(req)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("hxnav: parse layout: %w", err)
	}
	return doc, nil
}

// FetchScript retrieves a module script with the engine's credentials.
// It makes the engine the Module Loader's fetcher.
func (e *Engine) FetchScript(ctx context.Context, scriptURL string) ([]byte, error) {
	req, err := e.newRequest(ctx, http.MethodGet, scriptURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/javascript, */*")
	return e.do(req)
}

// send issues an action or form request and decodes a JSON object
// response. Non-JSON success bodies yield an empty map.
func (e *Engine) send(ctx context.Context, method, target string, payload []byte) (map[string]any, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := e.newRequest(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	raw, err := e.do(req)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&out); err != nil {
			out = make(map[string]any)
		}
	}
	return out, nil
}

// failureDetail extracts a human-readable message from an error body: the
// JSON message or error field, else the body's text with markup removed.
func failureDetail(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] == '{' {
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(trimmed, &payload) == nil {
			if payload.Message != "" {
				return truncate(payload.Message, maxDetail)
			}
			if payload.Error != "" {
				return truncate(payload.Error, maxDetail)
			}
		}
	}
	text := html.UnescapeString(detailPolicy.Sanitize(string(trimmed)))
	return truncate(strings.Join(strings.Fields(text), " "), maxDetail)
}

// errorDetail is the user-facing detail of a failed request: the server's
// message for status errors, the transport cause for failed fetches.
func errorDetail(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Detail
	}
	if !errors.Is(err, ErrFetchFailed) {
		return ""
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return truncate(ue.Err.Error(), maxDetail)
	}
	return truncate(err.Error(), maxDetail)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
