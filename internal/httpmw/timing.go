package httpmw

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/sampleform/internal/log"
)

// ProcessTimeHeader carries the elapsed handling time in decimal seconds.
const ProcessTimeHeader = "X-Process-Time"

// timingWriter stamps X-Process-Time at the moment headers are committed and
// records status and size for the timing log line.
type timingWriter struct {
	http.ResponseWriter
	start     time.Time
	status    int
	bytes     int64
	committed bool
	elapsed   time.Duration
}

func (tw *timingWriter) commit() {
	if tw.committed {
		return
	}
	tw.committed = true
	tw.elapsed = time.Since(tw.start)
	tw.ResponseWriter.Header().Set(ProcessTimeHeader, formatSeconds(tw.elapsed))
}

func (tw *timingWriter) WriteHeader(code int) {
	if !tw.committed {
		tw.commit()
		tw.status = code
	}
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timingWriter) Write(b []byte) (int, error) {
	if !tw.committed {
		tw.WriteHeader(http.StatusOK)
	}
	n, err := tw.ResponseWriter.Write(b)
	tw.bytes += int64(n)
	return n, err
}

// support Flush if the underlying writer does.
func (tw *timingWriter) Flush() {
	if !tw.committed {
		tw.WriteHeader(http.StatusOK)
	}
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (tw *timingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := tw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (tw *timingWriter) Unwrap() http.ResponseWriter { return tw.ResponseWriter }

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// ProcessTime measures each request, sets X-Process-Time on the response and
// logs one line per request through the request-scoped logger. That line is
// the access log.
func ProcessTime() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// give chi a route context we can read back after routing
			if chi.RouteContext(r.Context()) == nil {
				rctx := chi.NewRouteContext()
				r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
			}

			tw := &timingWriter{ResponseWriter: w, start: start}
			next.ServeHTTP(tw, r)

			// handler wrote nothing: net/http sends the headers after we return
			if !tw.committed {
				tw.commit()
				tw.status = http.StatusOK
			}

			ctx := r.Context()
			route := routePattern(r)

			total := time.Since(start)
			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(attribute.Float64("http.server.process_time_seconds", tw.elapsed.Seconds()))
			}

			// method and path are already on the request logger
			log.FromContext(ctx).Info(ctx,
				fmt.Sprintf("Request %s %s processed in %.4f secs", r.Method, r.URL.Path, tw.elapsed.Seconds()),
				"http.route", route,
				"http.response.status_code", tw.status,
				"http.response.body.size", tw.bytes,
				"http.server.request.duration", total.Seconds(),
				"process_time", tw.elapsed.Seconds(),
			)
		})
	}
}
