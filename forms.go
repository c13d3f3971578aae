package hxnav

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pthm/hxnav/lib/dom"
	"github.com/pthm/hxnav/lib/formdata"
	"golang.org/x/net/html"
)

func (e *Engine) onSubmit(ctx context.Context, ev *Event, t *target) {
	if ev.Type != EventSubmit {
		return
	}
	if t.form == nil || !t.form.Managed || !t.form.Bound || !t.inSlot {
		ev.Err = ErrUnmanagedForm
		return
	}
	ev.PreventDefault()
	ev.Handled = true
	ev.Err = e.submitForm(ctx, t.formNode, *t.form)
}

// submitForm runs the SPA form flow: optional file upload, JSON
// serialization, the request, then a redirect or a success toast.
func (e *Engine) submitForm(ctx context.Context, form *html.Node, spec FormSpec) error {
	if spec.Action == "" {
		e.notify(FlashError, "This form has no action.")
		return fmt.Errorf("hxnav: submit: %w: missing action", ErrUnmanagedForm)
	}

	if err := e.uploadFiles(ctx, form); err != nil {
		e.notify(FlashError, "File upload failed: "+err.Error())
		return fmt.Errorf("hxnav: upload: %w", err)
	}

	var fields []formdata.Field
	e.WithDocument(func(*html.Node) { fields = formdata.Collect(form) })
	payload, err := json.Marshal(formdata.Serialize(fields))
	if err != nil {
		return fmt.Errorf("hxnav: encode form: %w", err)
	}

	body, err := e.send(ctx, spec.Method, Resolve(spec.Action, e.Current()), payload)
	if err != nil {
		return e.requestFailed(ctx, err)
	}

	msg := successMessage(body, "Saved.")
	if spec.Redirect == "" {
		e.notify(FlashSuccess, msg)
		return nil
	}
	return e.followRedirect(ctx, spec.Redirect, body, msg)
}

// uploadFiles runs the upload sub-step when the form carries file inputs
// or a file-upload container and an uploader is configured. A successful
// upload leaves the file-group id in a hidden fileGroupId field, reusing
// an existing id when the form already has one.
func (e *Engine) uploadFiles(ctx context.Context, form *html.Node) error {
	if e.uploader == nil {
		return nil
	}
	var (
		hasFiles bool
		groupID  string
	)
	e.WithDocument(func(*html.Node) {
		hasFiles = dom.FindAttr(form, AttrFileUpload) != nil || hasFileInput(form)
		if in := namedInput(form, FileGroupIDField); in != nil {
			groupID = strings.TrimSpace(dom.AttrOr(in, "value", ""))
		}
	})
	if !hasFiles {
		return nil
	}
	if groupID == "" {
		groupID = uuid.NewString()
	}

	var uploaded bool
	err := isolate(func() error {
		var uerr error
		uploaded, uerr = e.uploader.Upload(ctx, form, groupID)
		return uerr
	})
	if err != nil || !uploaded {
		return err
	}

	e.WithDocument(func(*html.Node) {
		in := namedInput(form, FileGroupIDField)
		if in == nil {
			in = dom.NewElement("input",
				html.Attribute{Key: "type", Val: "hidden"},
				html.Attribute{Key: "name", Val: FileGroupIDField},
			)
			form.AppendChild(in)
		}
		dom.SetAttr(in, "value", groupID)
	})
	return nil
}

func hasFileInput(form *html.Node) bool {
	for _, in := range dom.FindAllTag(form, "input") {
		if strings.EqualFold(dom.AttrOr(in, "type", ""), "file") {
			return true
		}
	}
	return false
}

func namedInput(form *html.Node, name string) *html.Node {
	for _, in := range dom.FindAllTag(form, "input") {
		if dom.AttrOr(in, "name", "") == name {
			return in
		}
	}
	return nil
}

// followRedirect expands a {field} redirect template from the response
// body and navigates there. An unresolved placeholder skips the redirect
// and shows msg instead.
func (e *Engine) followRedirect(ctx context.Context, template string, body map[string]any, msg string) error {
	dest, err := formdata.ExpandRedirect(template, body)
	if err != nil {
		e.logger.Warn("hxnav: redirect skipped", "template", template, "error", err)
		e.notify(FlashSuccess, msg)
		return nil
	}
	return e.Navigate(ctx, dest)
}

// requestFailed reports a failed action or form request. CSRF rejections
// go to the guard; everything else becomes an error toast with the
// server's detail.
func (e *Engine) requestFailed(ctx context.Context, err error) error {
	if IsCSRF(err) {
		e.recoverCSRF(ctx, err)
		return err
	}
	msg := "The request failed."
	if detail := errorDetail(err); detail != "" {
		msg += " " + detail
	}
	e.notify(FlashError, msg)
	e.logger.Warn("hxnav: request failed", "error", err)
	return err
}
