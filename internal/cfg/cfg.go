// Package cfg binds the service configuration to flags and APP_* environment
// variables.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/keithlinneman/sampleform/internal/log"
)

// EnvPrefix maps flag "foo-bar" to APP_FOO_BAR.
const EnvPrefix = "APP_"

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type App struct {
	Env string

	LogLevel      string
	LogTimeFormat string
	LogName       string
	LogSource     bool

	HTTPPort  int
	AdminPort int

	EnablePprof     bool
	EnableTracing   bool
	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceSample     float64
	EnablePyroscope bool
	PyroServer      string
	PyroTenantID    string

	MaxUploadMB   int
	SubmitRate    float64
	SubmitBurst   int
	SubmitClients int
	TrustedProxyN int

	// DrainPeriod is how long readiness fails before listeners close.
	DrainPeriod time.Duration
}

// Development reports whether the interactive API docs should be served.
func (c App) Development() bool { return c.Env == EnvDevelopment }

// MaxBodyBytes is the request body ceiling derived from MaxUploadMB.
func (c App) MaxBodyBytes() int64 { return int64(c.MaxUploadMB) << 20 }

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.StringVar(&c.Env, "env", EnvProduction, "development|production; development serves /api/docs")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.LogTimeFormat, "log-time-format", log.DefaultTimeFormat, "Go time layout for the timestamp field")
	fs.StringVar(&c.LogName, "log-name", log.DefaultName, "logger name written on every record")
	fs.BoolVar(&c.LogSource, "log-source", false, "add caller file:line to records")
	fs.IntVar(&c.HTTPPort, "http-port", 8000, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.BoolVar(&c.OTLPInsecure, "otlp-insecure", true, "plaintext gRPC to the OTLP endpoint")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.IntVar(&c.MaxUploadMB, "max-upload-mb", 32, "largest accepted request body in MiB (1..1024)")
	fs.Float64Var(&c.SubmitRate, "submit-rate", 1, "form submissions per second per client ip")
	fs.IntVar(&c.SubmitBurst, "submit-burst", 10, "form submission burst per client ip")
	fs.IntVar(&c.SubmitClients, "submit-max-clients", 100000, "client ips tracked by the submission limiter; 0 is unbounded")
	fs.IntVar(&c.TrustedProxyN, "trusted-proxies", 0, "reverse proxies in front of the service; 0 ignores X-Forwarded-For")
	fs.DurationVar(&c.DrainPeriod, "drain-period", 5*time.Second, "time readiness fails before shutdown (0..5m)")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if logf == nil {
		logf = func(string, ...any) {}
	}

	fs.VisitAll(func(f *flag.Flag) {
		key := EnvKey(prefix, f.Name)
		envVal, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		if explicit[f.Name] {
			logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
		}
	})
}

// EnvKey returns the environment variable consulted for a flag.
func EnvKey(prefix, flagName string) string {
	return prefix + strings.ReplaceAll(strings.ToUpper(flagName), "-", "_")
}

// Validate checks every field and reports all problems at once.
func Validate(c App) error {
	var errs []error

	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("invalid ENV %q (must be %s|%s)", c.Env, EnvDevelopment, EnvProduction))
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if err := checkTimeLayout(c.LogTimeFormat); err != nil {
		errs = append(errs, err)
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}
	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, errors.New("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, errors.New("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, errors.New("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	if c.MaxUploadMB < 1 || c.MaxUploadMB > 1024 {
		errs = append(errs, fmt.Errorf("invalid MAX_UPLOAD_MB %d (must be 1..1024)", c.MaxUploadMB))
	}
	if c.SubmitRate <= 0 {
		errs = append(errs, fmt.Errorf("invalid SUBMIT_RATE %v (must be > 0)", c.SubmitRate))
	}
	if c.SubmitBurst < 1 {
		errs = append(errs, fmt.Errorf("invalid SUBMIT_BURST %d (must be >= 1)", c.SubmitBurst))
	}
	if c.SubmitClients < 0 {
		errs = append(errs, fmt.Errorf("invalid SUBMIT_MAX_CLIENTS %d (must be >= 0)", c.SubmitClients))
	}
	if c.TrustedProxyN < 0 || c.TrustedProxyN > 8 {
		errs = append(errs, fmt.Errorf("invalid TRUSTED_PROXIES %d (must be 0..8)", c.TrustedProxyN))
	}

	if c.DrainPeriod < 0 || c.DrainPeriod > 5*time.Minute {
		errs = append(errs, fmt.Errorf("invalid DRAIN_PERIOD %v (must be 0..5m)", c.DrainPeriod))
	}

	return errors.Join(errs...)
}

// checkTimeLayout rejects layouts with no date or time directive, which
// would stamp every record with the same literal text.
func checkTimeLayout(layout string) error {
	if strings.TrimSpace(layout) == "" {
		return errors.New("LOG_TIME_FORMAT must not be empty")
	}
	ref := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	if ref.Format(layout) == layout {
		return fmt.Errorf("LOG_TIME_FORMAT %q contains no time directives", layout)
	}
	return nil
}
