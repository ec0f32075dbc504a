// Package httpmiddleware provides the HTTP middleware chain for the
// gateway server: panic recovery, request identifiers, request logging
// and CORS for the browser-based renderer.
package httpmiddleware

import "net/http"

// Middleware wraps an http.Handler with additional behaviour.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h so that the first listed middleware is
// the outermost.
func Wrap(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
