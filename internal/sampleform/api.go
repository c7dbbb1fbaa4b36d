package sampleform

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/sampleform/internal/apierror"
	"github.com/keithlinneman/sampleform/internal/httpmw"
	"github.com/keithlinneman/sampleform/internal/log"
)

// Path is the submission route.
const Path = "/api/submit-sample-form"

// DefaultMaxMemory is how much of a multipart body is held in memory before
// file parts spill to disk.
const DefaultMaxMemory = 32 << 20

// Submission outcomes, used as the result label.
const (
	ResultAccepted = "accepted"
	ResultInvalid  = "invalid"
	ResultTooLarge = "too_large"
	ResultError    = "error"
)

// Recorder counts submission outcomes.
type Recorder interface {
	IncFormSubmission(result string)
}

// Response is the success body.
type Response struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

// API implements httpserver.RouteRegistrar for the form endpoint.
type API struct {
	maxMemory int64
	recorder  Recorder
	throttle  func(http.Handler) http.Handler
}

type Option func(*API)

// WithMaxMemory overrides DefaultMaxMemory.
func WithMaxMemory(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxMemory = n
		}
	}
}

func WithRecorder(r Recorder) Option { return func(a *API) { a.recorder = r } }

// WithThrottle wraps only the submission route, e.g. with a per-IP limiter.
func WithThrottle(mw func(http.Handler) http.Handler) Option {
	return func(a *API) { a.throttle = mw }
}

func NewAPI(opts ...Option) *API {
	a := &API{maxMemory: DefaultMaxMemory}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *API) RegisterRoutes(r chi.Router) {
	var h http.Handler = apierror.Handler(a.submit)
	if a.throttle != nil {
		h = a.throttle(h)
	}
	r.Method(http.MethodPost, Path, httpmw.Scope("sampleform.submit")(h))
}

func (a *API) submit(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() { a.record(err) }()

	ctx := r.Context()
	L := log.FromContext(ctx)

	sub, err := decode(r, a.maxMemory)
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}
	if err != nil {
		return err
	}
	if err := sub.validate(); err != nil {
		return err
	}

	L.Info(ctx, fmt.Sprintf("Received form data: Name=%s, Email=%s, Category=%s", sub.Name, sub.Email, sub.Category))

	contentType := sub.File.Header.Get("Content-Type")
	detected, err := detectType(sub.File)
	if err != nil {
		return apierror.Internal(err)
	}
	L.Info(ctx, fmt.Sprintf("Received file: Filename=%s, ContentType=%s", sub.File.Filename, contentType),
		"form.field", "file",
		"file.size", sub.File.Size,
		"detected_type", detected,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Response{
		Message:  "Form submitted successfully!",
		Filename: sub.File.Filename,
	})
	return nil
}

func (a *API) record(err error) {
	if a.recorder == nil {
		return
	}
	result := ResultAccepted
	if err != nil {
		switch e := apierror.Classify(err); {
		case e.Kind == apierror.KindValidation:
			result = ResultInvalid
		case e.Status == http.StatusRequestEntityTooLarge:
			result = ResultTooLarge
		default:
			result = ResultError
		}
	}
	a.recorder.IncFormSubmission(result)
}
