package httpmw

import (
	"errors"
	"net/http"

	"github.com/keithlinneman/sampleform/internal/apierror"
	"github.com/keithlinneman/sampleform/internal/log"
	"github.com/keithlinneman/sampleform/internal/xerrors"
)

// Recover turns a handler panic into an unclassified failure, logged with
// its stack and answered with the opaque 500 envelope. onPanic (optional)
// runs after the response is written, e.g. to bump a counter.
//
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func Recover(base log.Logger, onPanic func()) func(http.Handler) http.Handler {
	if base == nil {
		base = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}
				err := xerrors.FromPanic(v)

				ctx := r.Context()
				L := log.FromContext(ctx)
				if L == log.Nop() {
					L = base
				}
				L = L.With("panic", true)

				// one record, with exc_info pointing at the panic site
				apierror.Write(ctx, w, L, apierror.Internal(err))

				if onPanic != nil {
					onPanic()
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
