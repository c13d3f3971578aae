package hxnav

import (
	"context"
	"fmt"
	"html"
	"io"
	"time"

	"github.com/a-h/templ"
)

// Panel kinds, written to data-error-panel.
const (
	PanelNotFound  = "not-found"
	PanelForbidden = "forbidden"
	PanelRetry     = "retry"
	PanelSecurity  = "security"
)

type panel struct {
	kind    string
	title   string
	message string
	body    func(w io.Writer) error
}

func (p panel) component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			`<section class="error-panel error-panel-%[1]s" %[2]s="%[1]s" role="alert"><h2>%[3]s</h2><p>%[4]s</p>`,
			html.EscapeString(p.kind), AttrErrorPanel,
			html.EscapeString(p.title), html.EscapeString(p.message)); err != nil {
			return err
		}
		if p.body != nil {
			if err := p.body(w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}

func homeLink(w io.Writer, fallback string) error {
	_, err := fmt.Fprintf(w, `<a class="btn" href="%s">Go to the start page</a>`, html.EscapeString(fallback))
	return err
}

// NotFoundPanel tells the user the content does not exist and that they
// will be sent to fallback after delay.
func NotFoundPanel(fallback string, delay time.Duration) templ.Component {
	return panel{
		kind:    PanelNotFound,
		title:   "Page not found",
		message: fmt.Sprintf("The requested page does not exist. You will be redirected in %s.", delay.Round(time.Second/10)),
		body:    func(w io.Writer) error { return homeLink(w, fallback) },
	}.component()
}

// ForbiddenPanel tells the user they lack permission. It never redirects.
func ForbiddenPanel(fallback string) templ.Component {
	return panel{
		kind:    PanelForbidden,
		title:   "Access denied",
		message: "You do not have permission to view this page.",
		body:    func(w io.Writer) error { return homeLink(w, fallback) },
	}.component()
}

// RetryPanel reports a network or server failure and offers a reload and a
// link to fallback.
func RetryPanel(fallback, detail string) templ.Component {
	msg := "The page could not be loaded."
	if detail != "" {
		msg += " " + detail
	}
	return panel{
		kind:    PanelRetry,
		title:   "Something went wrong",
		message: msg,
		body: func(w io.Writer) error {
			if _, err := fmt.Fprintf(w, `<button type="button" class="btn" %s>Retry</button> `, AttrReload); err != nil {
				return err
			}
			return homeLink(w, fallback)
		},
	}.component()
}

// SecurityPanel reports a rejected target URL. No retry is offered.
func SecurityPanel() templ.Component {
	return panel{
		kind:    PanelSecurity,
		title:   "Invalid address",
		message: "The requested address was rejected for security reasons.",
	}.component()
}
