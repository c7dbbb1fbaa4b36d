package httpmw

import (
	"net/http"

	"github.com/keithlinneman/sampleform/internal/tracectx"
)

// TraceID binds the caller supplied trace id (if any) to the request context
// for the duration of the request and echoes it on the response. The header is
// set before next runs so it survives error and panic responses as well.
// The id is opaque and goes back verbatim; an absent or empty header binds
// nothing and nothing is echoed.
func TraceID(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = tracectx.Header
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(header)

			// binding on a derived context; the caller's context is untouched
			// so the id is gone as soon as this request returns
			ctx := tracectx.Bind(r.Context(), id)
			if id != "" {
				w.Header().Set(header, id)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
