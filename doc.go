// Package hxnav is the client-side navigation layer of a server-rendered
// CMMS application, run headless: it keeps one layout document mounted and
// swaps server-rendered content into a fixed slot, the way the browser
// shell does.
//
// hxnav does not render pages. The backend serves a layout page with a
// slot and any number of content pages; the Engine fetches content pages,
// extracts the relevant subtree and injects it into the slot, then runs the
// per-page setup that a full page load would have run.
//
// # Core Concepts
//
// Navigation state is a single content URL. The visible URL mirrors it as
// a query parameter on the layout path:
//
//	/layout?content=%2Fworkorder%2Flist
//
// History entries carry the content URL, so back and forward reload the
// right content without pushing new entries.
//
// An App wires an Engine with its default collaborators:
//
//	app, err := hxnav.New(cfg, hxnav.WithConfirmer(confirm))
//	if err != nil {
//	    return err
//	}
//	defer app.Close()
//	app.Register("workorder-list", initWorkOrderList)
//	if err := app.Start(ctx, "/layout"); err != nil {
//	    return err
//	}
//	_ = app.Engine.Navigate(ctx, "/workorder/detail/W100")
//
// # Content Swaps
//
// Every navigation resolves the target, commits the content URL and
// history, fetches the page and injects it. After injection the Engine
// runs, in order: the route's module script, inline scripts, the page
// initializer for the new root, widget initializers, form binding, sidebar
// state and the document title. A failing step is logged and does not stop
// the others.
//
// Each committed navigation takes a sequence number. A response that
// arrives after a newer navigation started is discarded, so the slot
// always shows the most recent navigation.
//
// # Events
//
// Clicks and submits are dispatched through delegated listeners keyed on
// data-* attributes (see attrs.go): confirmation prompts, delete and POST
// actions, retry buttons, row links, internal links and SPA-managed forms.
// Links the Engine does not own (other origins, data-no-spa, bypassed
// paths, new windows) are handed to the Window for native navigation.
//
// # Errors
//
// Load failures become error panels in the slot: not found (followed by a
// redirect to the default content), forbidden, and retry. A 403 on any
// request is a CSRF failure when a guard is configured; it never touches
// the slot and is delegated to the guard's recovery. Path traversal
// targets are rejected before any request is made.
//
// # Server Side
//
// Render, IsPartialRequest, ContentParam, WriteJSON and WriteError help
// backends serve the engine. The builders in action.go (DeleteAttrs,
// ActionAttrs, FormAttrs, NavigateAttrs) produce the attribute surface as
// templ.Attributes.
//
// Page initializers live in lib/pages, lazily loaded module scripts in
// lib/modules. lib/scripts runs page scripts in an embedded JavaScript
// runtime so script-registered initializers work without a browser.
package hxnav
