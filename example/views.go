package example

import (
	"context"
	"html"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/pthm/hxnav"
)

// attrs renders attributes in key order. A true bool renders the bare
// attribute name.
func attrs(a templ.Attributes) string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		switch v := a[k].(type) {
		case bool:
			if v {
				sb.WriteString(" " + k)
			}
		case string:
			sb.WriteString(" " + k + `="` + html.EscapeString(v) + `"`)
		}
	}
	return sb.String()
}

func esc(s string) string { return html.EscapeString(s) }

// content wraps a page body in a document with a title and a page root.
func content(title, pageID string, body func(sb *strings.Builder)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString("<!DOCTYPE html><html><head><title>" + esc(title) + "</title></head><body>")
		sb.WriteString("<main" + attrs(hxnav.PageAttrs(pageID)) + ">")
		body(&sb)
		sb.WriteString("</main></body></html>")
		_, err := io.WriteString(w, sb.String())
		return err
	})
}

// Layout renders the application shell: CSRF meta tag, sidebar, the empty
// layout slot and the toast container.
func Layout(token string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString(`<!DOCTYPE html><html><head><title>CMMS</title>`)
		sb.WriteString(`<meta name="csrf-token" content="` + esc(token) + `"></head><body>`)
		sb.WriteString(`<nav data-sidebar>`)
		sb.WriteString(`<a href="` + esc(hxnav.VisibleURL(LayoutPath, "content", "/dashboard")) + `">Dashboard</a>`)
		sb.WriteString(`<a href="/workorder/list">Work orders</a>`)
		sb.WriteString(`<a href="/workorder/new">New work order</a>`)
		sb.WriteString(`<a href="/logout">Sign out</a>`)
		sb.WriteString(`</nav>`)
		sb.WriteString(`<div id="` + hxnav.SlotID + `"></div>`)
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
		if err := hxnav.ToastContainer().Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// Dashboard renders work order counts.
func Dashboard(open, closed int) templ.Component {
	return content("Dashboard", "dashboard", func(sb *strings.Builder) {
		sb.WriteString("<h1>Dashboard</h1>")
		sb.WriteString(`<p><span class="stat-open">` + strconv.Itoa(open) + `</span> open, `)
		sb.WriteString(`<span class="stat-closed">` + strconv.Itoa(closed) + `</span> closed</p>`)
		sb.WriteString(`<a href="/workorder/list">Show work orders</a>`)
	})
}

// WorkOrderList renders the work order table. Rows navigate to the
// detail page; the delete button stays on the list.
func WorkOrderList(orders []WorkOrder) templ.Component {
	return content("Work orders", "workorder-list", func(sb *strings.Builder) {
		sb.WriteString(`<h1>Work orders</h1><a href="/workorder/new">New</a>`)
		sb.WriteString(`<table><thead><tr><th>ID</th><th>Title</th><th>Status</th><th></th></tr></thead><tbody>`)
		for _, wo := range orders {
			detail := "/workorder/detail/" + url.PathEscape(wo.ID)
			sb.WriteString(`<tr id="row-` + esc(wo.ID) + `"` + attrs(hxnav.NavigateAttrs(detail)) + `>`)
			sb.WriteString(`<td>` + esc(wo.ID) + `</td><td>` + esc(wo.Title) + `</td><td>` + esc(wo.Status) + `</td>`)
			sb.WriteString(`<td><button type="button" id="delete-` + esc(wo.ID) + `"` +
				attrs(hxnav.DeleteAttrs("/api/workorders/"+url.PathEscape(wo.ID), "", "Delete "+wo.ID+"?")) +
				`>Delete</button></td></tr>`)
		}
		sb.WriteString(`</tbody></table>`)
	})
}

// WorkOrderNew renders the creation form. The redirect template is filled
// from the JSON response of the create endpoint.
func WorkOrderNew(token string) templ.Component {
	return content("New work order", "workorder-new", func(sb *strings.Builder) {
		sb.WriteString(`<h1>New work order</h1>`)
		sb.WriteString(`<form id="workorder-form"` +
			attrs(hxnav.FormAttrs("/api/workorders", "POST", "/workorder/detail/{workOrderId}")) + `>`)
		sb.WriteString(`<input type="hidden" name="csrf_token" value="` + esc(token) + `">`)
		sb.WriteString(`<label>Title <input name="title" value=""></label>`)
		sb.WriteString(`<label>Plant <select name="plant"><option value="P1">Pump house</option><option value="P2">Boiler room</option></select></label>`)
		for i := 0; i < 2; i++ {
			n := strconv.Itoa(i)
			sb.WriteString(`<input name="items[` + n + `].name" value="">`)
			sb.WriteString(`<input name="items[` + n + `].qty" value="">`)
		}
		sb.WriteString(`<button type="submit">Create</button></form>`)
	})
}

// WorkOrderDetail renders one work order with its close and delete actions.
func WorkOrderDetail(wo WorkOrder) templ.Component {
	return content(wo.ID+" "+wo.Title, "workorder-detail", func(sb *strings.Builder) {
		api := "/api/workorders/" + url.PathEscape(wo.ID)
		sb.WriteString(`<h1>` + esc(wo.ID) + ` ` + esc(wo.Title) + `</h1>`)
		sb.WriteString(`<dl><dt>Plant</dt><dd>` + esc(wo.Plant) + `</dd>`)
		sb.WriteString(`<dt>Status</dt><dd class="status">` + esc(wo.Status) + `</dd></dl>`)
		if len(wo.Items) > 0 {
			sb.WriteString(`<ul class="items">`)
			for _, it := range wo.Items {
				sb.WriteString(`<li>` + esc(it.Name))
				if it.Qty != "" {
					sb.WriteString(` x` + esc(it.Qty))
				}
				sb.WriteString(`</li>`)
			}
			sb.WriteString(`</ul>`)
		}
		if wo.Status != StatusClosed {
			sb.WriteString(`<button type="button" id="close"` +
				attrs(hxnav.ActionAttrs(api+"/close", "", "Close "+wo.ID+"?")) + `>Close</button>`)
		}
		sb.WriteString(`<button type="button" id="delete"` +
			attrs(hxnav.DeleteAttrs(api, "/workorder/list", "")) + `>Delete</button>`)
		sb.WriteString(`<a href="/workorder/list">Back to list</a>`)
	})
}
