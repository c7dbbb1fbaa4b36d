// Package tracectx carries the caller-supplied trace id for one request.
//
// The id lives in the request's context.Context rather than in any
// process-wide slot. Bind derives a child context; everything that runs with
// that context (handlers, the logger, goroutines handed the ctx) can read it
// without the id being threaded through function signatures. When the
// request returns, the derived context is dropped and the parent is
// untouched, so concurrent requests can never observe each other's id and
// nothing has to be "reset" on panic or client cancellation.
package tracectx
