package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/sampleform/internal/tracectx"
)

// newRecordingSpan creates a context with a real recording span for testing.
func newRecordingSpan(t *testing.T, name string) (context.Context, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	ctx, _ := tp.Tracer("test").Start(context.Background(), name)
	return ctx, sr
}

func TestAnnotateHTTPRoute_NoSpan(t *testing.T) {
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	AnnotateHTTPRoute(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	if !handlerCalled {
		t.Fatal("handler not called without span")
	}
}

func TestAnnotateHTTPRoute_WithChiRouter(t *testing.T) {
	ctx, sr := newRecordingSpan(t, "initial")

	r := chi.NewRouter()
	r.Use(AnnotateHTTPRoute)
	r.Post("/api/submit-sample-form", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/submit-sample-form", http.NoBody).WithContext(ctx)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	trace.SpanFromContext(ctx).End()
	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name() != "POST /api/submit-sample-form" {
		t.Fatalf("span name = %q", spans[0].Name())
	}
	found := false
	for _, attr := range spans[0].Attributes() {
		if attr.Key == attribute.Key("http.route") {
			found = true
			if attr.Value.AsString() != "/api/submit-sample-form" {
				t.Fatalf("http.route = %q", attr.Value.AsString())
			}
		}
	}
	if !found {
		t.Fatal("http.route attribute not set")
	}
}

func spanAttr(s sdktrace.ReadOnlySpan, key attribute.Key) (string, bool) {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value.AsString(), true
		}
	}
	return "", false
}

func TestAnnotateHTTPRoute_CarriesTraceID(t *testing.T) {
	ctx, sr := newRecordingSpan(t, "initial")
	ctx = tracectx.Bind(ctx, "abc123")

	r := chi.NewRouter()
	r.Use(AnnotateHTTPRoute)
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody).WithContext(ctx))

	trace.SpanFromContext(ctx).End()
	if v, ok := spanAttr(sr.Ended()[0], TraceIDAttr); !ok || v != "abc123" {
		t.Fatalf("%s = %q, %v", TraceIDAttr, v, ok)
	}
}

func TestAnnotateHTTPRoute_NoTraceIDNoAttr(t *testing.T) {
	ctx, sr := newRecordingSpan(t, "initial")

	AnnotateHTTPRoute(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", http.NoBody).WithContext(ctx))

	trace.SpanFromContext(ctx).End()
	s := sr.Ended()[0]
	if _, ok := spanAttr(s, TraceIDAttr); ok {
		t.Fatal("trace id attribute set without a bound id")
	}
	if s.Name() != "GET /nowhere" {
		t.Fatalf("span name = %q, want path fallback", s.Name())
	}
}
