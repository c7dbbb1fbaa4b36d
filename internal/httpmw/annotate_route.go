package httpmw

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/sampleform/internal/tracectx"
)

// TraceIDAttr carries the caller's X-Trace-ID on the server span, so a
// client-side id can be used to find the distributed trace.
const TraceIDAttr = attribute.Key("app.trace_id")

// AnnotateHTTPRoute names the server span "<METHOD> <route pattern>" after
// chi has matched the route. Install it with Router.Use.
func AnnotateHTTPRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		span := trace.SpanFromContext(r.Context())
		if !span.IsRecording() {
			return
		}
		route := routePattern(r)
		span.SetName(r.Method + " " + route)
		span.SetAttributes(semconv.HTTPRouteKey.String(route))
		if id, ok := tracectx.From(r.Context()); ok {
			span.SetAttributes(TraceIDAttr.String(id))
		}
	})
}

// routePattern is the matched chi pattern, or the raw path when routing
// never matched.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
