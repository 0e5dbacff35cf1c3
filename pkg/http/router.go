package xhttp

import (
	"fmt"

	"github.com/fasthttp/router"
)

type Router = router.Router

func NewRouter() *Router {
	return router.New()
}

// CreateDefaultRouter returns a router with sane defaults: fixed-path and
// trailing-slash redirects, JSON 404/405 responses, OPTIONS handling off.
func CreateDefaultRouter() *Router {
	r := NewRouter()
	r.RedirectFixedPath = true
	r.RedirectTrailingSlash = true
	r.SaveMatchedRoutePath = true
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = NotFoundHandler
	r.HandleOPTIONS = false
	r.HandleMethodNotAllowed = true
	return r
}

// NotFoundHandler replies with the same JSON error envelope the API
// handlers use, so clients never see a bare-text 404.
func NotFoundHandler(ctx *RequestCtx) {
	ctx.SetStatusCode(StatusNotFound)
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBodyString(fmt.Sprintf("{\"error\":%q}", StatusText(StatusNotFound)))
}
