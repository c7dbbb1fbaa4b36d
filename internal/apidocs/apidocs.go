// Package apidocs serves the interactive API documentation and the OpenAPI
// document. Both are only mounted in development.
package apidocs

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/sampleform/internal/xerrors"
)

const (
	DocsPath    = "/api/docs"
	OpenAPIPath = "/api/openapi.json"
)

// docsCSP lets the docs page pull swagger-ui from the CDN and fetch the
// document from this origin.
const docsCSP = "default-src 'none'; base-uri 'none'; frame-ancestors 'none'; " +
	"script-src https://cdn.jsdelivr.net 'unsafe-inline'; " +
	"style-src https://cdn.jsdelivr.net 'unsafe-inline'; " +
	"img-src 'self' data: https://cdn.jsdelivr.net; connect-src 'self'"

//go:embed assets/openapi.json
var openapiJSON []byte

//go:embed assets/docs.html
var docsHTML []byte

// API implements httpserver.RouteRegistrar for the docs routes.
type API struct {
	doc      *openapi3.T
	rendered []byte
}

// New loads and validates the embedded document and stamps it with version.
func New(ctx context.Context, version string) (*API, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiJSON)
	if err != nil {
		return nil, xerrors.Wrap(err, "load openapi document")
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, xerrors.Wrap(err, "validate openapi document")
	}
	if version != "" {
		doc.Info.Version = version
	}

	rendered, err := json.Marshal(doc)
	if err != nil {
		return nil, xerrors.Wrap(err, "render openapi document")
	}
	return &API{doc: doc, rendered: rendered}, nil
}

// Document returns the parsed document.
func (a *API) Document() *openapi3.T { return a.doc }

func (a *API) RegisterRoutes(r chi.Router) {
	r.Get(OpenAPIPath, a.serveOpenAPI)
	r.Get(DocsPath, a.serveDocs)
}

func (a *API) serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.rendered)
}

func (a *API) serveDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", docsCSP)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(docsHTML)
}
