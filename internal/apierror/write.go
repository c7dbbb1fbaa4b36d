package apierror

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/keithlinneman/sampleform/internal/log"
)

// Write classifies err, logs it the way its kind requires and sends the
// envelope. The client never sees internal error text.
func Write(ctx context.Context, w http.ResponseWriter, logger log.Logger, err error) {
	ae := Classify(err)
	if ae == nil {
		return
	}
	if logger == nil {
		logger = log.FromContext(ctx)
	}

	switch ae.Kind {
	case KindHTTP:
		logger.Error(ctx, nil, "HTTP Exception: "+ae.Message, "status", ae.Status, "error_kind", ae.Kind.String())
	case KindValidation:
		logger.Error(ctx, nil, "Validation Error: "+fieldsText(ae.Fields), "status", ae.Status, "error_kind", ae.Kind.String())
	default:
		logger.Error(ctx, ae.cause, InternalMessage, "status", ae.Status, "error_kind", ae.Kind.String())
	}

	writeJSON(w, ae.Status, ae.Envelope())
}

// Handler adapts an error-returning handler. A returned error is translated
// with the request-scoped logger.
func Handler(fn func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			ctx := r.Context()
			Write(ctx, w, log.FromContext(ctx), err)
		}
	}
}

func fieldsText(fields []FieldError) string {
	if len(fields) == 0 {
		return "[]"
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
