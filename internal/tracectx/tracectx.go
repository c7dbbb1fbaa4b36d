package tracectx

import "context"

// Header is the inbound and echoed trace id header.
const Header = "X-Trace-ID"

type ctxKey struct{}

// Bind returns a child of ctx carrying id. An empty id binds "absent",
// which masks any id bound further up the chain.
func Bind(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the trace id bound to ctx and whether one is present.
func From(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id, id != ""
}

// ID returns the bound trace id or "".
func ID(ctx context.Context) string {
	id, _ := From(ctx)
	return id
}
