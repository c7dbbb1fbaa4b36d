// Package health provides composable probes for liveness and readiness.
//
// Probes combine with [All] (AND) and [Any] (OR); [Fixed] is static and
// [CheckFunc] adapts a plain function. [ShutdownGate] fails readiness as
// soon as shutdown starts so traffic drains before the listener closes.
package health
