// Package ajaxformecho provides Echo framework integration for ajaxform
// endpoints.
//
// Mount a form endpoint onto an Echo instance or group:
//
//	e := echo.New()
//	ajaxformecho.Mount(e, "/contact", func(c echo.Context) ajaxform.Reply {
//	    if c.FormValue("email") == "" {
//	        return ajaxform.Failure().Message("email", "Required")
//	    }
//	    return ajaxform.Success()
//	})
//
// Or mount on a group with middleware:
//
//	g := e.Group("/forms", authMiddleware)
//	ajaxformecho.MountGroup(g, "/signup", signup, ajaxformecho.WithRedirect("/signup"))
package ajaxformecho

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/pthm/ajaxform"
)

// EndpointFunc handles a form post and returns the envelope to send.
type EndpointFunc func(c echo.Context) ajaxform.Reply

// Option configures Mount, MountGroup and RequireAjax.
type Option func(*options)

type options struct {
	redirect string
}

// WithRedirect sends plain (non-ajax) posts to url with 303 See Other after
// the endpoint ran, instead of rejecting them.
func WithRedirect(url string) Option {
	return func(o *options) {
		o.redirect = url
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Mount registers fn for POST requests to path on an Echo instance.
//
//	e := echo.New()
//	ajaxformecho.Mount(e, "/contact", contact)
//
//	// Accept plain form posts too:
//	ajaxformecho.Mount(e, "/contact", contact, ajaxformecho.WithRedirect("/thanks"))
func Mount(e *echo.Echo, path string, fn EndpointFunc, opts ...Option) *echo.Route {
	return e.POST(path, Endpoint(fn, opts...))
}

// MountGroup registers fn for POST requests to path on an Echo group, so the
// endpoint shares the group's middleware (auth, logging, etc.).
func MountGroup(g *echo.Group, path string, fn EndpointFunc, opts ...Option) *echo.Route {
	return g.POST(path, Endpoint(fn, opts...))
}

// Endpoint adapts fn to an echo.HandlerFunc. Ajax posts get the reply
// envelope; plain posts are redirected when WithRedirect is set and refused
// with 403 otherwise.
func Endpoint(fn EndpointFunc, opts ...Option) echo.HandlerFunc {
	o := newOptions(opts)
	return func(c echo.Context) error {
		if !ajaxform.IsAjax(c.Request()) && o.redirect == "" {
			return echo.NewHTTPError(http.StatusForbidden, "ajax request required")
		}

		reply := fn(c)
		if !ajaxform.IsAjax(c.Request()) {
			return c.Redirect(http.StatusSeeOther, o.redirect)
		}
		return Reply(c, reply)
	}
}

// RequireAjax is middleware that refuses non-ajax requests with 403, or
// redirects them when WithRedirect is set. Safe methods pass through.
func RequireAjax(opts ...Option) echo.MiddlewareFunc {
	o := newOptions(opts)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			if r.Method == http.MethodGet || r.Method == http.MethodHead || ajaxform.IsAjax(r) {
				return next(c)
			}
			if o.redirect != "" {
				return c.Redirect(http.StatusSeeOther, o.redirect)
			}
			return echo.NewHTTPError(http.StatusForbidden, "ajax request required")
		}
	}
}

// Reply writes reply as the response, in JSON or msgpack as the client
// prefers.
//
//	func contact(c echo.Context) error {
//	    return ajaxformecho.Reply(c, ajaxform.Success())
//	}
func Reply(c echo.Context, reply ajaxform.Reply) error {
	return ajaxform.WriteReply(c.Response(), c.Request(), reply)
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return ajaxformecho.Render(c, contactPage())
//	}
func Render(c echo.Context, component templ.Component) error {
	return ajaxform.Render(c.Response(), c.Request(), component)
}
