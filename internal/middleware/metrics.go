package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sakif/soundscape/internal/metrics"
)

// Metrics records request count, latency and in-flight requests in
// Prometheus. The route label is the chi pattern, read after the router has
// matched, so it must be mounted on the router rather than in front of it.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()
		wrapped := wrap(w)

		next.ServeHTTP(wrapped, r)

		metrics.RecordAPIRequest(
			r.Method,
			routePattern(r),
			strconv.Itoa(wrapped.statusCode),
			time.Since(start),
		)
	})
}
