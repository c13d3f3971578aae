package hxnav

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	bracketTemplate = regexp.MustCompile(`^@\{(.*)\}$`)
	schemePrefix    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)
)

// Resolve turns a raw link target into a content URL, relative to the
// content URL currently displayed. It is pure and never panics; on any
// internal failure the target is returned unchanged.
//
//   - "@{/x/y}" (an unprocessed server template) loses its markers.
//   - Scheme-prefixed and root-relative targets pass through.
//   - Paths not ending in ".html" are application routes and become
//     root-relative.
//   - ".html" paths resolve against the directory portion of current, so
//     "list.html" against "/inspection/detail/edit.html" is
//     "/inspection/list.html".
func Resolve(target, current string) (resolved string) {
	defer func() {
		if recover() != nil {
			resolved = target
		}
	}()

	t := strings.TrimSpace(target)
	if m := bracketTemplate.FindStringSubmatch(t); m != nil {
		t = strings.TrimSpace(m[1])
	}
	if t == "" {
		return target
	}
	if schemePrefix.MatchString(t) || strings.HasPrefix(t, "/") {
		return t
	}

	p, rest := splitPath(t)
	if !strings.HasSuffix(strings.ToLower(p), ".html") {
		return path.Clean("/"+p) + rest
	}

	base, err := url.Parse(contentDir(current))
	if err != nil {
		return target
	}
	ref, err := url.Parse(t)
	if err != nil {
		return target
	}
	return base.ResolveReference(ref).String()
}

// contentDir is the current content URL up to (not including) its last
// slash, with query and fragment dropped.
func contentDir(current string) string {
	p, _ := splitPath(strings.TrimSpace(current))
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

// splitPath separates the path from a trailing "?query" or "#fragment".
func splitPath(s string) (p, rest string) {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

// HasTraversal reports whether target contains more than one ".."
// path segment, percent-encoded forms included.
func HasTraversal(target string) bool {
	p, _ := splitPath(target)
	for i := 0; i < 2; i++ {
		decoded, err := url.PathUnescape(p)
		if err != nil || decoded == p {
			break
		}
		p = decoded
	}
	count := 0
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			count++
		}
	}
	return count > 1
}

// DefaultBypassPrefixes are paths always left to native navigation.
var DefaultBypassPrefixes = []string{
	"/logout",
	"/login",
	"/auth/",
	"/files/",
	"/api/files/",
}

// IsBypassed reports whether a link must be left to native navigation:
// different-origin absolute URLs, non-HTTP schemes (mailto:, tel:,
// javascript:), fragment-only and empty hrefs, and paths under one of the
// bypass prefixes. origin may be nil, in which case every absolute URL is
// external.
func IsBypassed(href string, origin *url.URL, prefixes []string) bool {
	h := strings.TrimSpace(href)
	if h == "" || strings.HasPrefix(h, "#") {
		return true
	}
	lower := strings.ToLower(h)
	for _, s := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(lower, s) {
			return true
		}
	}
	u, err := url.Parse(h)
	if err != nil {
		return true
	}
	if u.Scheme != "" || u.Host != "" {
		if origin == nil || !strings.EqualFold(u.Host, origin.Host) {
			return true
		}
		if u.Scheme != "" && u.Scheme != origin.Scheme {
			return true
		}
	}
	p := u.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// VisibleURL is the browser-visible layout URL mirroring content.
func VisibleURL(layoutPath, param, content string) string {
	return layoutPath + "?" + url.Values{param: {content}}.Encode()
}

// ContentFromURL extracts the content URL from a visible layout URL's
// query. It returns "" when absent.
func ContentFromURL(visible, param string) string {
	u, err := url.Parse(visible)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get(param))
}
