package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/sampleform/internal/httpmw"
	"github.com/keithlinneman/sampleform/internal/log"
)

// RouteRegistrar mounts a group of routes on the API router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type Options struct {
	Logger log.Logger
	Port   int

	// Routes are always mounted. DevRoutes only when Development is set.
	Routes      []RouteRegistrar
	DevRoutes   []RouteRegistrar
	Development bool

	// MaxBodyBytes caps request bodies; zero disables the cap.
	MaxBodyBytes int64

	MetricsMW    func(http.Handler) http.Handler
	OnPanic      func()
	ClientIPOpts httpmw.ClientIPOptions
}
