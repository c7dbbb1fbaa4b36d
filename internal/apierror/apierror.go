// Package apierror classifies handler failures into the three kinds the API
// exposes and renders them as a {"detail": ..., "code": ...} envelope.
//
// Handlers return errors instead of writing failure responses themselves.
// The boundary (Handler, the router's NotFound/MethodNotAllowed hooks and the
// panic recoverer) calls Write exactly once per failed request.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/keithlinneman/sampleform/internal/xerrors"
)

// Kind is the closed set of failure classes.
type Kind int

const (
	// KindInternal is any failure that was not raised as an explicit
	// HTTP or validation failure. Its text never reaches the client.
	KindInternal Kind = iota
	KindHTTP
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// InternalMessage is the only detail a client ever sees for KindInternal.
const InternalMessage = "An unexpected error occurred."

// FieldError describes one rejected request field.
type FieldError struct {
	Type  string   `json:"type"`
	Loc   []string `json:"loc"`
	Msg   string   `json:"msg"`
	Input any      `json:"input"`
}

// Missing reports a required body field that was not supplied.
func Missing(field string) FieldError {
	return FieldError{Type: "missing", Loc: []string{"body", field}, Msg: "Field required"}
}

func (f FieldError) String() string {
	return strings.Join(f.Loc, ".") + ": " + f.Msg
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Fields  []FieldError

	cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindValidation:
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.String())
		}
		return "validation failed: " + strings.Join(parts, "; ")
	case KindInternal:
		if e.cause != nil {
			return e.cause.Error()
		}
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// HTTP raises an explicit failure with its own status. An empty msg uses the
// standard status text.
func HTTP(status int, msg string) *Error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Kind: KindHTTP, Status: status, Message: msg}
}

func NotFound() *Error         { return HTTP(http.StatusNotFound, "Not Found") }
func MethodNotAllowed() *Error { return HTTP(http.StatusMethodNotAllowed, "Method Not Allowed") }
func TooLarge() *Error         { return HTTP(http.StatusRequestEntityTooLarge, "Request Entity Too Large") }
func TooManyRequests() *Error  { return HTTP(http.StatusTooManyRequests, "Too Many Requests") }
func Unavailable() *Error      { return HTTP(http.StatusServiceUnavailable, "Service Unavailable") }

// Validation raises a 400 carrying the per-field problems.
func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: "Validation Error", Fields: fields}
}

// Internal marks err as unclassified. A stack is attached when the chain
// does not already carry one so exc_info points at the failure site.
func Internal(err error) *Error {
	if err == nil {
		err = errors.New("internal error")
	}
	return &Error{
		Kind:    KindInternal,
		Status:  http.StatusInternalServerError,
		Message: InternalMessage,
		cause:   xerrors.EnsureTrace(err),
	}
}

// Classify inspects err once. Explicit *Error values keep their kind, an
// exceeded body limit becomes a 413, everything else is internal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		if ae.Kind == KindInternal && ae.cause == nil {
			return Internal(fmt.Errorf("%s", ae.Message))
		}
		return ae
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return TooLarge()
	}
	return Internal(err)
}

// Envelope is the response body for every failure.
type Envelope struct {
	Detail any `json:"detail"`
	Code   int `json:"code"`
}

// Envelope renders e for the client. Code always equals e.Status.
func (e *Error) Envelope() Envelope {
	switch e.Kind {
	case KindHTTP:
		return Envelope{Detail: e.Message, Code: e.Status}
	case KindValidation:
		fields := e.Fields
		if fields == nil {
			fields = []FieldError{}
		}
		return Envelope{Detail: fields, Code: e.Status}
	default:
		return Envelope{Detail: InternalMessage, Code: http.StatusInternalServerError}
	}
}
