package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/sampleform/internal/apierror"
	"github.com/keithlinneman/sampleform/internal/httpmw"
	"github.com/keithlinneman/sampleform/internal/log"
	"github.com/keithlinneman/sampleform/internal/tracectx"
	"github.com/keithlinneman/sampleform/internal/xerrors"
)

// DefaultPort is used when Options.Port is zero.
const DefaultPort = 8000

// NewHandler builds the API handler: chi routes wrapped in the fixed
// middleware stack. main() owns *http.Server so it can do graceful shutdown.
func NewHandler(opts *Options) http.Handler {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}

	r := chi.NewRouter()

	r.Use(middleware.Compress(5,
		"application/json",
		"text/html",
	))

	// rename server span to the matched route pattern
	r.Use(httpmw.AnnotateHTTPRoute)

	r.Use(httpmw.MaxBody(opts.MaxBodyBytes))

	for _, rr := range opts.Routes {
		if rr != nil {
			rr.RegisterRoutes(r)
		}
	}
	if opts.Development {
		for _, rr := range opts.DevRoutes {
			if rr != nil {
				rr.RegisterRoutes(r)
			}
		}
	}

	// unmatched routes are explicit HTTP failures
	r.NotFound(apierror.Handler(func(http.ResponseWriter, *http.Request) error {
		return apierror.NotFound()
	}))
	r.MethodNotAllowed(apierror.Handler(func(http.ResponseWriter, *http.Request) error {
		return apierror.MethodNotAllowed()
	}))

	// health checks stay out of traces
	shouldTrace := func(r *http.Request) bool {
		return r.URL.Path != "/api/health"
	}

	// Outermost first. Trace always wraps Timing, which wraps the router.
	return httpmw.Chain(r,
		httpmw.SecurityHeaders,
		func(h http.Handler) http.Handler {
			return otelhttp.NewHandler(h, "http.server",
				otelhttp.WithFilter(shouldTrace),
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					// AnnotateHTTPRoute renames it once the route is known
					return r.Method + " " + r.URL.Path
				}),
				otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
			)
		},
		opts.MetricsMW,
		httpmw.ClientIPWithOptions(opts.ClientIPOpts),
		httpmw.TraceID(tracectx.Header),
		httpmw.WithLogger(logger),
		httpmw.ProcessTime(),
		httpmw.Recover(logger, opts.OnPanic),
	)
}

// Server timeout defaults, shared with opshttp.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1 MB
)

// NewServer returns a server whose own error output goes through logger.
func NewServer(addr string, handler http.Handler, logger log.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
		ErrorLog:          log.StdLogger(logger, slog.LevelWarn),
	}
}

// Start the public HTTP server.
// Returns stop(ctx) for graceful shutdown.
func Start(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	addr := fmt.Sprintf(":%d", port)

	srv := NewServer(addr, NewHandler(&opts), opts.Logger)

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "listen %s", addr)
	}

	go func() {
		opts.Logger.Info(ctx, "http server listening", "addr", addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			opts.Logger.Error(ctx, err, "http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			opts.Logger.Info(sctx, "http server shutting down")
			c, cancel := context.WithTimeout(sctx, 5*time.Second)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}
