package middleware

import (
	"net/http"
)

// RequestSizeLimit caps request bodies at maxBytes. Decoders report the overflow as
// *http.MaxBytesError, which httputil.DecodeJSON turns into a 413.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
