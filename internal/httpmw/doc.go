// Package httpmw holds the HTTP middleware of the public listener.
//
// httpserver.NewHandler composes them outermost first: security headers,
// the otel server span, metrics, client IP resolution, TraceID, WithLogger,
// ProcessTime, Recover, then the chi router (AnnotateHTTPRoute and MaxBody
// run inside it). TraceID therefore always wraps ProcessTime, and both wrap
// every handler including the error translator.
//
// User-supplied data (query strings, headers other than the trace id) is
// kept out of log fields.
package httpmw
