package metrics

import (
	"net/http"
	"time"
)

// UnmatchedPath labels requests no route matched, so scans of random URLs
// cannot grow the label set.
const UnmatchedPath = "unmatched"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware records request counts, durations and the in-flight gauge.
// Requests are labelled with the ServeMux pattern that served them.
func HTTPMiddleware(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg.InFlightInc()
			defer reg.InFlightDec()

			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			route := r.Pattern
			if route == "" {
				route = UnmatchedPath
			}
			reg.RecordRequest(r.Method, route, rw.status, time.Since(start).Seconds())
		})
	}
}
