package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithlinneman/sampleform/internal/apidocs"
	"github.com/keithlinneman/sampleform/internal/cfg"
	"github.com/keithlinneman/sampleform/internal/health"
	"github.com/keithlinneman/sampleform/internal/healthhttp"
	"github.com/keithlinneman/sampleform/internal/httpmw"
	"github.com/keithlinneman/sampleform/internal/httpserver"
	"github.com/keithlinneman/sampleform/internal/log"
	"github.com/keithlinneman/sampleform/internal/metrics"
	"github.com/keithlinneman/sampleform/internal/opshttp"
	"github.com/keithlinneman/sampleform/internal/otelx"
	"github.com/keithlinneman/sampleform/internal/prof"
	"github.com/keithlinneman/sampleform/internal/ratelimit"
	"github.com/keithlinneman/sampleform/internal/sampleform"
	v "github.com/keithlinneman/sampleform/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	vi := v.Get()

	var conf cfg.App
	var showVersion bool
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			v.App, vi.Version, vi.Commit, vi.CommitDate, vi.BuildID, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return 0
	}

	cfg.FillFromEnv(flag.CommandLine, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return 1
	}

	lvl, _ := log.ParseLevel(conf.LogLevel)
	var setup log.Setup
	lg, err := setup.Configure(log.Options{
		Name:       conf.LogName,
		Level:      lvl,
		TimeFormat: conf.LogTimeFormat,
		AddSource:  conf.LogSource,
		Writer:     os.Stdout,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		return 1
	}
	defer func() { _ = lg.Sync() }()
	L := lg
	ctx, cancel := context.WithCancel(log.WithContext(context.Background(), L))
	defer cancel()

	L.Info(ctx, "initializing application", append(vi.LogFields(),
		"env", conf.Env,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_tracing", conf.EnableTracing,
		"enable_pyroscope", conf.EnablePyroscope,
		"max_upload_mb", conf.MaxUploadMB,
		"submit_max_clients", conf.SubmitClients,
		"trusted_proxies", conf.TrustedProxyN,
	)...)

	m := metrics.New()
	m.SetBuildInfoFromVersion("server", vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.App,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
		OnActive: m.SetProfilingActive,
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer stopProf()

	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  conf.OTLPInsecure,
		Sample:    conf.TraceSample,
		Service:   v.App,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed, tracing disabled")
		shutdownOTEL, _ = otelx.Init(ctx, otelx.Options{})
	}

	var gate health.ShutdownGate
	readiness := health.All(gate.Probe())

	limiter := ratelimit.New(ctx,
		ratelimit.WithRate(conf.SubmitRate, conf.SubmitBurst),
		ratelimit.WithMaxVisitors(conf.SubmitClients),
		ratelimit.WithOnDenied(func(string) { m.IncRateLimitDenied() }),
		// once per ip until it is evicted
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "client.address", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit capacity reached, rejecting new clients until some are evicted")
		}),
	)

	routes := []httpserver.RouteRegistrar{
		healthhttp.NewAPI(readiness),
		sampleform.NewAPI(
			sampleform.WithMaxMemory(conf.MaxBodyBytes()),
			sampleform.WithRecorder(m),
			sampleform.WithThrottle(limiter.Middleware),
		),
	}
	var devRoutes []httpserver.RouteRegistrar
	if conf.Development() {
		docs, err := apidocs.New(ctx, vi.Version)
		if err != nil {
			L.Error(ctx, err, "failed to load api documentation")
			return 1
		}
		L.Info(ctx, "api documentation enabled", "paths", len(docs.Document().Paths.Map()))
		devRoutes = append(devRoutes, docs)
	}

	appStop, err := httpserver.Start(ctx, httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		Routes:       routes,
		DevRoutes:    devRoutes,
		Development:  conf.Development(),
		MaxBodyBytes: conf.MaxBodyBytes(),
		MetricsMW:    m.Middleware,
		OnPanic:      m.IncHttpPanic,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyN},
	})
	if err != nil {
		L.Error(ctx, err, "failed to start app http listener")
		return 1
	}

	// the admin listener rejects public peers itself, in case the network
	// boundary in front of it is ever misconfigured
	opsStop, err := opshttp.Start(ctx, L.With("component", "ops"), opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		_ = appStop(context.Background())
		return 1
	}

	L.Info(ctx, "Application startup event triggered.")
	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd readiness not sent", "reason", err.Error())
	}

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	<-sigCtx.Done()
	stopSignals()

	L.Info(context.Background(), "Application shutdown event triggered.")
	gate.Close("shutting down")
	drain(L, conf.DrainPeriod)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	code := 0
	if err := appStop(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "app http server shutdown")
		code = 1
	}
	if err := opsStop(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "ops http server shutdown")
		code = 1
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(shutdownCtx, err, "otel shutdown")
	}
	L.Info(shutdownCtx, "shutdown complete")
	return code
}

// drain keeps serving with readiness failed so load balancers stop sending
// traffic. A second signal cuts it short.
func drain(L log.Logger, d time.Duration) {
	if d <= 0 {
		return
	}
	L.Info(context.Background(), "draining before shutdown", "period", d.String())
	force := make(chan os.Signal, 1)
	signal.Notify(force, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(force)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-force:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
}

func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return fmt.Errorf("systemd notify: %w", err)
	}
	return nil
}
