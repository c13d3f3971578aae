package hxnav

import (
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/pthm/hxnav/lib/dom"
	"golang.org/x/net/html"
)

// DefaultDeleteConfirm is asked before a delete action without its own
// data-delete-confirm text.
const DefaultDeleteConfirm = "Delete this item?"

// Typed views of the data-* attributes an element carries. The engine reads
// an element's attributes once into one of these and works from the value.

// ConfirmSpec is a confirmable element.
type ConfirmSpec struct {
	Message string
}

// ActionSpec is a delete (data-delete-url) or POST (data-action-url) action.
type ActionSpec struct {
	Method   string
	URL      string
	Redirect string
	Confirm  string
}

// LinkSpec is an anchor.
type LinkSpec struct {
	Href     string
	Target   string
	NoSPA    bool
	Download bool
}

// RowSpec is a row-level navigation target.
type RowSpec struct {
	URL string

	// Interactive is set when the click landed on an interactive
	// descendant of the row, which handles the click itself.
	Interactive bool
}

// FormSpec is an SPA-managed form.
type FormSpec struct {
	Action   string
	Method   string
	Redirect string
	Managed  bool
	Bound    bool
}

// ParseConfirm reads a data-confirm element.
func ParseConfirm(n *html.Node) (ConfirmSpec, bool) {
	msg, ok := dom.Attr(n, AttrConfirm)
	if !ok {
		return ConfirmSpec{}, false
	}
	return ConfirmSpec{Message: msg}, true
}

// ParseDelete reads a data-delete-url element.
func ParseDelete(n *html.Node) (ActionSpec, bool) {
	u := strings.TrimSpace(dom.AttrOr(n, AttrDeleteURL, ""))
	if u == "" {
		return ActionSpec{}, false
	}
	return ActionSpec{
		Method:   http.MethodDelete,
		URL:      u,
		Redirect: strings.TrimSpace(dom.AttrOr(n, AttrRedirect, "")),
		Confirm:  dom.AttrOr(n, AttrDeleteConfirm, DefaultDeleteConfirm),
	}, true
}

// ParseAction reads a data-action-url element.
func ParseAction(n *html.Node) (ActionSpec, bool) {
	u := strings.TrimSpace(dom.AttrOr(n, AttrActionURL, ""))
	if u == "" {
		return ActionSpec{}, false
	}
	return ActionSpec{
		Method:   http.MethodPost,
		URL:      u,
		Redirect: strings.TrimSpace(dom.AttrOr(n, AttrRedirect, "")),
		Confirm:  dom.AttrOr(n, AttrActionConfirm, ""),
	}, true
}

// ParseLink reads an anchor with an href.
func ParseLink(n *html.Node) (LinkSpec, bool) {
	if !dom.IsElement(n, "a") {
		return LinkSpec{}, false
	}
	href, ok := dom.Attr(n, "href")
	if !ok {
		return LinkSpec{}, false
	}
	return LinkSpec{
		Href:     strings.TrimSpace(href),
		Target:   dom.AttrOr(n, "target", ""),
		NoSPA:    dom.HasAttr(n, AttrNoSPA),
		Download: dom.HasAttr(n, "download"),
	}, true
}

// NewContext reports whether the link opens another browsing context.
func (l LinkSpec) NewContext() bool {
	return l.Target != "" && !strings.EqualFold(l.Target, "_self")
}

// ParseRow reads a data-navigate element.
func ParseRow(n *html.Node) (RowSpec, bool) {
	u := strings.TrimSpace(dom.AttrOr(n, AttrNavigate, ""))
	if u == "" {
		return RowSpec{}, false
	}
	return RowSpec{URL: u}, true
}

// ParseForm reads a form element.
func ParseForm(n *html.Node) (FormSpec, bool) {
	if !dom.IsElement(n, "form") {
		return FormSpec{}, false
	}
	action := dom.AttrOr(n, AttrFormAction, "")
	if action == "" {
		action = dom.AttrOr(n, "action", "")
	}
	method := dom.AttrOr(n, AttrFormMethod, "")
	if method == "" {
		method = dom.AttrOr(n, "method", http.MethodPost)
	}
	return FormSpec{
		Action:   strings.TrimSpace(action),
		Method:   strings.ToUpper(strings.TrimSpace(method)),
		Redirect: strings.TrimSpace(dom.AttrOr(n, AttrRedirect, "")),
		Managed:  dom.HasAttr(n, AttrFormManager),
		Bound:    dom.HasAttr(n, AttrFormBound),
	}, true
}

// Attribute builders for server templates, so backends emit the exact wire
// format the engine reads:
//
//	<button { hxnav.DeleteAttrs("/api/workorders/"+id, "/workorder/list", "")... }>Delete</button>

// DeleteAttrs builds the attributes of a delete action. Empty redirect and
// confirm are omitted.
func DeleteAttrs(url, redirect, confirm string) templ.Attributes {
	attrs := templ.Attributes{AttrDeleteURL: url}
	if redirect != "" {
		attrs[AttrRedirect] = redirect
	}
	if confirm != "" {
		attrs[AttrDeleteConfirm] = confirm
	}
	return attrs
}

// ActionAttrs builds the attributes of a POST action.
func ActionAttrs(url, redirect, confirm string) templ.Attributes {
	attrs := templ.Attributes{AttrActionURL: url}
	if redirect != "" {
		attrs[AttrRedirect] = redirect
	}
	if confirm != "" {
		attrs[AttrActionConfirm] = confirm
	}
	return attrs
}

// FormAttrs builds the attributes of an SPA-managed form. redirect may
// contain {field} placeholders filled from the JSON response.
func FormAttrs(action, method, redirect string) templ.Attributes {
	attrs := templ.Attributes{
		AttrFormManager: true,
		AttrFormAction:  action,
	}
	if method != "" && !strings.EqualFold(method, http.MethodPost) {
		attrs[AttrFormMethod] = strings.ToUpper(method)
	}
	if redirect != "" {
		attrs[AttrRedirect] = redirect
	}
	return attrs
}

// NavigateAttrs makes an element (typically a table row) navigate to url
// when clicked anywhere in its bounds.
func NavigateAttrs(url string) templ.Attributes {
	return templ.Attributes{AttrNavigate: url}
}

// ConfirmAttrs guards an element's default action with a confirmation.
func ConfirmAttrs(message string) templ.Attributes {
	return templ.Attributes{AttrConfirm: message}
}

// PageAttrs marks a page root with its page id.
func PageAttrs(pageID string) templ.Attributes {
	return templ.Attributes{
		AttrPageRoot: true,
		AttrPageID:   pageID,
	}
}
