// Package hxnavecho serves hxnav content from Echo backends.
//
// Content routes only answer engine (partial) requests; a full page visit
// is redirected to the layout, which then loads the content into its slot:
//
//	e := echo.New()
//	g := e.Group("/workorder", hxnavecho.LayoutFallback())
//	g.GET("/list", func(c echo.Context) error {
//	    return hxnavecho.Render(c, http.StatusOK, workOrderList(items))
//	})
package hxnavecho

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/pthm/hxnav"
)

// Option configures LayoutFallback.
type Option func(*options)

type options struct {
	layoutPath string
	param      string
}

// WithLayoutPath sets the layout path. Defaults to "/layout".
func WithLayoutPath(path string) Option {
	return func(o *options) {
		o.layoutPath = path
	}
}

// WithParam sets the query parameter carrying the content URL. Defaults to
// "content".
func WithParam(param string) Option {
	return func(o *options) {
		o.param = param
	}
}

// LayoutFallback redirects full-page GET visits of content routes to the
// layout with the content URL in its query. Partial requests pass through.
func LayoutFallback(opts ...Option) echo.MiddlewareFunc {
	o := &options{layoutPath: "/layout", param: "content"}
	for _, opt := range opts {
		opt(o)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			if r.Method != http.MethodGet || IsPartial(c) {
				return next(c)
			}
			return c.Redirect(http.StatusFound, hxnav.VisibleURL(o.layoutPath, o.param, r.URL.RequestURI()))
		}
	}
}

// IsPartial reports whether the request was issued by the engine.
func IsPartial(c echo.Context) bool {
	return hxnav.IsPartialRequest(c.Request())
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return hxnavecho.Render(c, http.StatusOK, dashboard(stats))
//	}
func Render(c echo.Context, status int, component templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	return component.Render(c.Request().Context(), c.Response())
}
