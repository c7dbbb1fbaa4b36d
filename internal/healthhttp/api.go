// Package healthhttp serves the public health endpoint on the API router.
package healthhttp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/sampleform/internal/apierror"
	"github.com/keithlinneman/sampleform/internal/health"
	"github.com/keithlinneman/sampleform/internal/httpmw"
	"github.com/keithlinneman/sampleform/internal/log"
)

// Path is the public health route.
const Path = "/api/health"

// API implements httpserver.RouteRegistrar for the health endpoint.
type API struct {
	// Ready gates the endpoint; nil always reports ok.
	Ready health.Probe
}

func NewAPI(ready health.Probe) *API {
	return &API{Ready: ready}
}

func (api *API) RegisterRoutes(r chi.Router) {
	r.With(httpmw.Scope("health")).Method(http.MethodGet, Path, apierror.Handler(api.serveHealth))
}

func (api *API) serveHealth(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	log.FromContext(ctx).Info(ctx, "Health check endpoint accessed.")

	if api.Ready != nil {
		if err := api.Ready.Check(ctx); err != nil {
			return apierror.Unavailable()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	return nil
}
