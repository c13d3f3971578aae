// Package dom provides the small set of tree operations the navigation
// engine needs on golang.org/x/net/html documents: attribute access,
// attribute-driven lookups (XPath through htmlquery), ancestor walks,
// child replacement and rendering.
//
// Nodes returned by the lookup functions are live: mutating them mutates
// the document they belong to. The package does no locking; callers that
// share a document between goroutines guard it themselves.
package dom

import (
	"bytes"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attr returns the value of the named attribute and whether it is present.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the named attribute or def when it is absent.
func AttrOr(n *html.Node, key, def string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return def
}

// HasAttr reports whether the element carries the named attribute.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// SetAttr sets or replaces an attribute.
func SetAttr(n *html.Node, key, val string) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute if present.
func RemoveAttr(n *html.Node, key string) {
	if n == nil {
		return
	}
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// IsElement reports whether n is an element with the given tag name.
func IsElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

// FindAttr returns the first element at or below root (document order)
// carrying the attribute.
func FindAttr(root *html.Node, key string) *html.Node {
	if root == nil {
		return nil
	}
	return htmlquery.FindOne(root, "descendant-or-self::*[@"+key+"]")
}

// FindAllAttr returns every element at or below root carrying the attribute.
func FindAllAttr(root *html.Node, key string) []*html.Node {
	if root == nil {
		return nil
	}
	return htmlquery.Find(root, "descendant-or-self::*[@"+key+"]")
}

// FindTag returns the first element at or below root with the tag name.
func FindTag(root *html.Node, tag string) *html.Node {
	if root == nil {
		return nil
	}
	return htmlquery.FindOne(root, "descendant-or-self::"+tag)
}

// FindAllTag returns every element at or below root with the tag name.
func FindAllTag(root *html.Node, tag string) []*html.Node {
	if root == nil {
		return nil
	}
	return htmlquery.Find(root, "descendant-or-self::"+tag)
}

// ByID returns the element whose id attribute equals id.
func ByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if v, ok := Attr(n, "id"); ok && v == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Walk visits n and its descendants in document order until fn returns false.
func Walk(n *html.Node, fn func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// Closest walks from n up through its ancestors and returns the first
// element for which match returns true.
func Closest(n *html.Node, match func(*html.Node) bool) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && match(n) {
			return n
		}
	}
	return nil
}

// ClosestAttr returns the nearest element (n included) carrying the attribute.
func ClosestAttr(n *html.Node, key string) *html.Node {
	return Closest(n, func(e *html.Node) bool { return HasAttr(e, key) })
}

// ClosestTag returns the nearest element (n included) with the tag name.
func ClosestTag(n *html.Node, tag string) *html.Node {
	return Closest(n, func(e *html.Node) bool { return e.Data == tag })
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

// HasElementChild reports whether n has at least one element child.
func HasElementChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// MoveChildren moves every child of src to the end of dst.
func MoveChildren(dst, src *html.Node) {
	for c := src.FirstChild; c != nil; c = src.FirstChild {
		src.RemoveChild(c)
		dst.AppendChild(c)
	}
}

// Text returns the concatenated text content of n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

// SetText replaces the children of n with a single text node.
func SetText(n *html.Node, text string) {
	RemoveChildren(n)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// Render serializes n (including its own tag) to HTML.
func Render(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return ""
		}
	}
	return buf.String()
}

// ParseFragment parses src as children of a <div> and returns the nodes.
func ParseFragment(src string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	return html.ParseFragment(strings.NewReader(src), ctx)
}

// NewElement creates a detached element.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// HasClass reports whether the class attribute contains the token.
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(AttrOr(n, "class", "")) {
		if c == class {
			return true
		}
	}
	return false
}

// AddClass adds a class token if missing.
func AddClass(n *html.Node, class string) {
	if HasClass(n, class) {
		return
	}
	cur := strings.TrimSpace(AttrOr(n, "class", ""))
	if cur == "" {
		SetAttr(n, "class", class)
		return
	}
	SetAttr(n, "class", cur+" "+class)
}

// RemoveClass removes every occurrence of a class token.
func RemoveClass(n *html.Node, class string) {
	v, ok := Attr(n, "class")
	if !ok {
		return
	}
	var kept []string
	for _, c := range strings.Fields(v) {
		if c != class {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		RemoveAttr(n, "class")
		return
	}
	SetAttr(n, "class", strings.Join(kept, " "))
}
