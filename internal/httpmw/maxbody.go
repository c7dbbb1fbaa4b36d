package httpmw

import "net/http"

// MaxBody caps the request body at n bytes. Reads past the cap fail with
// *http.MaxBytesError, which apierror translates into a 413 envelope.
// n <= 0 leaves the body unbounded.
func MaxBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if n <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
