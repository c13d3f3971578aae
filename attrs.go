package hxnav

import "github.com/pthm/hxnav/lib/pages"

// DOM attribute surface shared with server-rendered markup. These names are
// the wire format between the backend templates and the engine.
const (
	AttrSlotRoot    = "data-slot-root"
	AttrPageRoot    = pages.AttrPageRoot
	AttrPageID      = pages.AttrPageID
	AttrInitialized = pages.AttrInitialized

	AttrNoSPA    = "data-no-spa"
	AttrNavigate = "data-navigate"
	AttrConfirm  = "data-confirm"

	AttrDeleteURL     = "data-delete-url"
	AttrDeleteConfirm = "data-delete-confirm"
	AttrActionURL     = "data-action-url"
	AttrActionConfirm = "data-action-confirm"
	AttrRedirect      = "data-redirect"
	AttrReload        = "data-reload"

	AttrFormManager = "data-form-manager"
	AttrFormAction  = "data-action"
	AttrFormMethod  = "data-method"
	AttrFormBound   = "data-form-bound"
	AttrFileUpload  = "data-file-upload"

	AttrSidebar    = "data-sidebar"
	AttrErrorPanel = "data-error-panel"
)

// Well-known element ids and field names.
const (
	SlotID           = "layout-slot"
	ToastsID         = "toasts"
	FileGroupIDField = "fileGroupId"
)
