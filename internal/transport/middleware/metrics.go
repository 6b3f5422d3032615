package middleware

import (
	"net/http"
	"time"
)

// httpRecorder receives one observation per served request.
type httpRecorder interface {
	ObserveHTTP(route, method string, code int, d time.Duration)
}

// Metrics returns middleware that records latency and status per chi route
// pattern. Unmatched requests are reported under "unmatched" to keep label
// cardinality bounded.
func Metrics(rec httpRecorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}
			rec.ObserveHTTP(route, r.Method, sw.status, time.Since(start))
		})
	}
}
