package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain combines multiple middleware into a single Middleware.
// Chain(mw1, mw2)(handler) results in mw1(mw2(handler)): mw1 is outermost.
func Chain(mws ...Middleware) Middleware {
	fns := make(chi.Middlewares, len(mws))
	for i, mw := range mws {
		fns[i] = mw
	}
	return func(final http.Handler) http.Handler {
		if len(fns) == 0 {
			return final
		}
		return fns.Handler(final)
	}
}
