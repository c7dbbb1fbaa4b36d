// Package prof runs the continuous profiling agent.
package prof

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"

	"github.com/keithlinneman/sampleform/internal/log"
	"github.com/keithlinneman/sampleform/internal/xerrors"
)

type Options struct {
	Enabled       bool
	AppName       string
	ServerAddress string
	TenantID      string
	Tags          map[string]string

	// Zero leaves the runtime default in place.
	MutexProfileFraction int
	BlockProfileRate     int

	// OnActive is told when the agent starts and stops.
	OnActive func(active bool)
}

var profileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseObjects,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
	pyroscope.ProfileMutexCount,
	pyroscope.ProfileMutexDuration,
	pyroscope.ProfileBlockCount,
	pyroscope.ProfileBlockDuration,
}

// Start launches the agent. The returned stop func is always callable and
// safe to call more than once, including when err is non-nil.
func Start(ctx context.Context, opts Options) (func(), error) {
	L := log.FromContext(ctx)
	noop := func() {}

	if !opts.Enabled {
		L.Debug(ctx, "continuous profiling disabled")
		return noop, nil
	}
	if opts.ServerAddress == "" {
		return noop, xerrors.New("profiling enabled without a server address")
	}

	if opts.MutexProfileFraction > 0 {
		runtime.SetMutexProfileFraction(opts.MutexProfileFraction)
	}
	if opts.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(opts.BlockProfileRate)
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: opts.AppName,
		ServerAddress:   opts.ServerAddress,
		TenantID:        opts.TenantID,
		Tags:            opts.Tags,
		Logger:          agentLogger{L: L.With("component", "pyroscope")},
		ProfileTypes:    profileTypes,
	})
	if err != nil {
		return noop, xerrors.Wrapf(err, "start profiler for %s", opts.ServerAddress)
	}

	notify(opts.OnActive, true)
	L.Info(ctx, "continuous profiling started", "server.address", opts.ServerAddress, "app", opts.AppName)

	var once sync.Once
	return func() {
		once.Do(func() {
			profiler.Stop()
			notify(opts.OnActive, false)
			L.Info(context.Background(), "continuous profiling stopped")
		})
	}, nil
}

func notify(fn func(bool), v bool) {
	if fn != nil {
		fn(v)
	}
}

// agentLogger routes the agent's printf-style output into the app logger.
type agentLogger struct{ L log.Logger }

func (a agentLogger) Infof(format string, args ...any) {
	a.L.Debug(context.Background(), fmt.Sprintf(format, args...))
}

func (a agentLogger) Debugf(format string, args ...any) {
	a.L.Debug(context.Background(), fmt.Sprintf(format, args...))
}

func (a agentLogger) Errorf(format string, args ...any) {
	a.L.Warn(context.Background(), fmt.Sprintf(format, args...))
}
