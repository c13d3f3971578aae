// Package formdata turns HTML form controls into the JSON object posted by
// SPA-managed forms, and expands redirect templates from the response.
package formdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pthm/hxnav/lib/dom"
	"golang.org/x/net/html"
)

// Field is one successful form control value.
type Field struct {
	Name  string
	Value string
}

// reservedPrefixes name fields owned by the checklist widgets. Page code
// assembles those into their own JSON blob.
var reservedPrefixes = []string{
	"checklist",
	"checkItem",
	"chkResult",
}

var indexedName = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[(\d+)\]\.([A-Za-z_][A-Za-z0-9_]*)$`)

// Reserved reports whether a field name belongs to a checklist widget.
func Reserved(name string) bool {
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Collect returns the successful controls of form in document order:
// named, enabled inputs (checked ones only for checkboxes and radios),
// selected options and textareas. Buttons and file inputs are skipped.
func Collect(form *html.Node) []Field {
	var fields []Field
	dom.Walk(form, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		name, ok := dom.Attr(n, "name")
		if !ok || name == "" || dom.HasAttr(n, "disabled") {
			return true
		}
		switch n.Data {
		case "input":
			typ := strings.ToLower(dom.AttrOr(n, "type", "text"))
			switch typ {
			case "submit", "button", "reset", "image", "file":
				return true
			case "checkbox", "radio":
				if !dom.HasAttr(n, "checked") {
					return true
				}
				fields = append(fields, Field{name, dom.AttrOr(n, "value", "on")})
				return true
			}
			fields = append(fields, Field{name, dom.AttrOr(n, "value", "")})
		case "textarea":
			fields = append(fields, Field{name, dom.Text(n)})
		case "select":
			fields = append(fields, selectValues(n, name)...)
		}
		return true
	})
	return fields
}

func selectValues(sel *html.Node, name string) []Field {
	var (
		out   []Field
		first *html.Node
	)
	for _, opt := range dom.FindAllTag(sel, "option") {
		if first == nil {
			first = opt
		}
		if dom.HasAttr(opt, "selected") && !dom.HasAttr(opt, "disabled") {
			out = append(out, Field{name, optionValue(opt)})
		}
	}
	if len(out) == 0 && first != nil && !dom.HasAttr(sel, "multiple") {
		out = append(out, Field{name, optionValue(first)})
	}
	return out
}

func optionValue(opt *html.Node) string {
	if v, ok := dom.Attr(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(dom.Text(opt))
}

// Serialize builds the JSON object for a form.
//
// Values are grouped by name first. Checklist fields are skipped. Names of
// the form arrayName[index].fieldName become an array of objects, keeping
// the first value of each such field. Other names map to a string when
// they occur once and to a []any of strings when repeated. Empty objects
// are finally dropped from an "items" array.
func Serialize(fields []Field) map[string]any {
	var order []string
	grouped := make(map[string][]string)
	for _, f := range fields {
		if _, seen := grouped[f.Name]; !seen {
			order = append(order, f.Name)
		}
		grouped[f.Name] = append(grouped[f.Name], f.Value)
	}

	out := make(map[string]any)
	arrays := make(map[string]map[int]map[string]any)
	for _, name := range order {
		if Reserved(name) {
			continue
		}
		values := grouped[name]
		if m := indexedName.FindStringSubmatch(name); m != nil {
			idx, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			arr := arrays[m[1]]
			if arr == nil {
				arr = make(map[int]map[string]any)
				arrays[m[1]] = arr
			}
			obj := arr[idx]
			if obj == nil {
				obj = make(map[string]any)
				arr[idx] = obj
			}
			obj[m[3]] = values[0]
			continue
		}
		if len(values) == 1 {
			out[name] = values[0]
			continue
		}
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = v
		}
		out[name] = list
	}

	for name, byIndex := range arrays {
		last := -1
		for i := range byIndex {
			if i > last {
				last = i
			}
		}
		list := make([]any, last+1)
		for i := range list {
			if obj, ok := byIndex[i]; ok {
				list[i] = obj
			} else {
				list[i] = map[string]any{}
			}
		}
		out[name] = list
	}

	if items, ok := out["items"].([]any); ok {
		kept := items[:0]
		for _, it := range items {
			if obj, ok := it.(map[string]any); ok && len(obj) == 0 {
				continue
			}
			kept = append(kept, it)
		}
		out["items"] = kept
	}
	return out
}

// Marshal collects and serializes form as JSON.
func Marshal(form *html.Node) ([]byte, error) {
	return json.Marshal(Serialize(Collect(form)))
}

// ErrUnresolved is returned when a redirect placeholder has no value in the
// response body.
var ErrUnresolved = errors.New("formdata: unresolved redirect placeholder")

// wellKnownIDs are tried, in order, when a placeholder's own name is absent.
var wellKnownIDs = []string{
	"id",
	"workOrderId",
	"inspectionId",
	"plantId",
	"permitId",
	"memoId",
	"approvalId",
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// ExpandRedirect substitutes {field} placeholders in template from the
// response body: the literal field name, then well-known id fields, then any
// key ending in "Id" (alphabetically first, for determinism).
func ExpandRedirect(template string, body map[string]any) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := lookup(body, name); ok {
			return v
		}
		missing = append(missing, name)
		return m
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnresolved, strings.Join(missing, ", "))
	}
	return out, nil
}

func lookup(body map[string]any, name string) (string, bool) {
	if v, ok := scalar(body[name]); ok {
		return v, true
	}
	for _, k := range wellKnownIDs {
		if v, ok := scalar(body[k]); ok {
			return v, true
		}
	}
	var keys []string
	for k := range body {
		if strings.HasSuffix(k, "Id") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, ok := scalar(body[k]); ok {
			return v, true
		}
	}
	return "", false
}

func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int, int64, bool:
		return fmt.Sprint(x), true
	}
	return "", false
}
