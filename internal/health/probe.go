package health

import (
	"context"
	"sync/atomic"

	"github.com/keithlinneman/sampleform/internal/xerrors"
)

// Probe is evaluated at request time. nil means OK; an error is the reason
// for failing.
type Probe interface{ Check(context.Context) error }

// CheckFunc adapts a function into a Probe.
type CheckFunc func(context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Fixed always passes, or always fails with reason.
func Fixed(ok bool, reason string) CheckFunc {
	if ok {
		return func(context.Context) error { return nil }
	}
	if reason == "" {
		reason = "unhealthy"
	}
	return func(context.Context) error { return xerrors.New(reason) }
}

// All passes only if every non-nil probe passes and returns the first failure.
func All(ps ...Probe) CheckFunc {
	return func(ctx context.Context) error {
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Any passes if one non-nil probe passes, otherwise returns the last failure.
func Any(ps ...Probe) CheckFunc {
	return func(ctx context.Context) error {
		var last error
		for _, p := range ps {
			if p == nil {
				continue
			}
			err := p.Check(ctx)
			if err == nil {
				return nil
			}
			last = err
		}
		if last != nil {
			return last
		}
		return xerrors.New("no healthy probes")
	}
}

// ShutdownGate flips readiness to failing while the process drains.
// The zero value is open.
type ShutdownGate struct {
	// nil while open; otherwise the reason readiness fails
	reason atomic.Pointer[string]
}

const defaultDrainReason = "draining"

// Close starts draining; the probe fails with reason from now on.
func (g *ShutdownGate) Close(reason string) {
	if reason == "" {
		reason = defaultDrainReason
	}
	g.reason.Store(&reason)
}

// Probe reads the gate on every check, so it reflects a Close made after it
// was built.
func (g *ShutdownGate) Probe() CheckFunc {
	return func(context.Context) error {
		if r := g.reason.Load(); r != nil {
			return xerrors.New(*r)
		}
		return nil
	}
}
