package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/keithlinneman/sampleform/internal/log"
	"github.com/keithlinneman/sampleform/internal/xerrors"
)

// spyLogger captures Error calls for assertions.
type spyLogger struct {
	log.Logger
	mu      sync.Mutex
	entries []spyEntry
}

type spyEntry struct {
	msg string
	err error
	kv  []any
}

func newSpyLogger() *spyLogger { return &spyLogger{Logger: log.Nop()} }

func (s *spyLogger) With(kv ...any) log.Logger { return s }

func (s *spyLogger) Error(ctx context.Context, err error, msg string, kv ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, spyEntry{msg: msg, err: err, kv: kv})
}

func (s *spyLogger) only(t *testing.T) spyEntry {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) != 1 {
		t.Fatalf("got %d error records, want 1", len(s.entries))
	}
	return s.entries[0]
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("body is not JSON: %v\n%s", err, rec.Body.String())
	}
	return m
}

// Classify

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		status int
	}{
		{"explicit http", NotFound(), KindHTTP, 404},
		{"wrapped http", fmt.Errorf("route: %w", TooManyRequests()), KindHTTP, 429},
		{"validation", Validation(Missing("name")), KindValidation, 400},
		{"plain error", errors.New("boom"), KindInternal, 500},
		{"xerrors", xerrors.New("db"), KindInternal, 500},
		{"max bytes", fmt.Errorf("parse: %w", &http.MaxBytesError{Limit: 10}), KindHTTP, 413},
		{"internal", Internal(errors.New("x")), KindInternal, 500},
		{"bare internal", &Error{Kind: KindInternal, Message: "raw"}, KindInternal, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ae := Classify(tt.err)
			if ae.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v", ae.Kind, tt.kind)
			}
			if ae.Status != tt.status {
				t.Fatalf("status = %d, want %d", ae.Status, tt.status)
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	if Classify(nil) != nil {
		t.Fatal("Classify(nil) should be nil")
	}
}

func TestHTTP_EmptyMessageUsesStatusText(t *testing.T) {
	if got := HTTP(http.StatusTeapot, "").Message; got != "I'm a teapot" {
		t.Fatalf("Message = %q", got)
	}
}

func TestInternal_AttachesStack(t *testing.T) {
	ae := Internal(errors.New("plain"))
	if len(xerrors.Stack(ae)) == 0 {
		t.Fatal("internal failures should carry a stack")
	}
}

func TestInternal_NilCause(t *testing.T) {
	if Internal(nil).Error() == "" {
		t.Fatal("Internal(nil) should still describe itself")
	}
}

func TestError_ValidationText(t *testing.T) {
	err := Validation(Missing("name"), Missing("file"))
	want := "validation failed: body.name: Field required; body.file: Field required"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

// Write

func TestWrite_HTTPFailure(t *testing.T) {
	spy := newSpyLogger()
	rec := httptest.NewRecorder()

	Write(context.Background(), rec, spy, NotFound())

	if rec.Code != 404 {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"detail":"Not Found","code":404}` {
		t.Fatalf("body = %s", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
	e := spy.only(t)
	if e.msg != "HTTP Exception: Not Found" {
		t.Fatalf("log msg = %q", e.msg)
	}
	if e.err != nil {
		t.Fatal("explicit HTTP failures log without exc_info")
	}
}

func TestWrite_ValidationFailure(t *testing.T) {
	spy := newSpyLogger()
	rec := httptest.NewRecorder()

	Write(context.Background(), rec, spy, Validation(Missing("email")))

	if rec.Code != 400 {
		t.Fatalf("status = %d", rec.Code)
	}
	m := decode(t, rec)
	if m["code"] != float64(400) {
		t.Fatalf("code = %v", m["code"])
	}
	detail, ok := m["detail"].([]any)
	if !ok || len(detail) != 1 {
		t.Fatalf("detail = %v, want one field error", m["detail"])
	}
	fe := detail[0].(map[string]any)
	if fe["type"] != "missing" || fe["msg"] != "Field required" {
		t.Fatalf("field error = %v", fe)
	}
	loc := fe["loc"].([]any)
	if len(loc) != 2 || loc[0] != "body" || loc[1] != "email" {
		t.Fatalf("loc = %v", loc)
	}
	if e := spy.only(t); !strings.HasPrefix(e.msg, "Validation Error: ") || !strings.Contains(e.msg, "email") {
		t.Fatalf("log msg = %q", e.msg)
	}
}

func TestWrite_ValidationWithoutFieldsStillAList(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(context.Background(), rec, log.Nop(), Validation())

	if got := strings.TrimSpace(rec.Body.String()); got != `{"detail":[],"code":400}` {
		t.Fatalf("body = %s", got)
	}
}

func TestWrite_InternalFailureIsOpaque(t *testing.T) {
	spy := newSpyLogger()
	rec := httptest.NewRecorder()

	Write(context.Background(), rec, spy, errors.New("password=hunter2 leaked"))

	if rec.Code != 500 {
		t.Fatalf("status = %d", rec.Code)
	}
	want := `{"detail":"An unexpected error occurred.","code":500}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Fatalf("body = %s, want %s", got, want)
	}
	if strings.Contains(rec.Body.String(), "hunter2") {
		t.Fatal("internal error text leaked to the client")
	}
	e := spy.only(t)
	if e.msg != InternalMessage {
		t.Fatalf("log msg = %q", e.msg)
	}
	if e.err == nil || !strings.Contains(e.err.Error(), "hunter2") {
		t.Fatal("the original error should reach the log for exc_info")
	}
}

func TestWrite_CodeMatchesStatus(t *testing.T) {
	errs := []error{
		NotFound(), MethodNotAllowed(), TooLarge(), TooManyRequests(), Unavailable(),
		HTTP(http.StatusConflict, "conflict"),
		Validation(Missing("name")),
		errors.New("x"),
	}
	for _, err := range errs {
		rec := httptest.NewRecorder()
		Write(context.Background(), rec, log.Nop(), err)
		if m := decode(t, rec); m["code"] != float64(rec.Code) {
			t.Fatalf("%v: code %v != status %d", err, m["code"], rec.Code)
		}
	}
}

func TestWrite_NilErrorWritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(context.Background(), rec, log.Nop(), nil)
	if rec.Body.Len() != 0 {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestWrite_NilLoggerUsesContextLogger(t *testing.T) {
	spy := newSpyLogger()
	ctx := log.WithContext(context.Background(), spy)

	Write(ctx, httptest.NewRecorder(), nil, Unavailable())

	if e := spy.only(t); e.msg != "HTTP Exception: Service Unavailable" {
		t.Fatalf("log msg = %q", e.msg)
	}
}

// Handler

func TestHandler_SuccessPassesThrough(t *testing.T) {
	h := Handler(func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusAccepted)
		return nil
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandler_ErrorTranslatedWithRequestLogger(t *testing.T) {
	spy := newSpyLogger()
	h := Handler(func(w http.ResponseWriter, r *http.Request) error {
		return xerrors.New("cache miss exploded")
	})
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req = req.WithContext(log.WithContext(req.Context(), spy))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != 500 {
		t.Fatalf("status = %d", rec.Code)
	}
	if e := spy.only(t); e.msg != InternalMessage {
		t.Fatalf("log msg = %q", e.msg)
	}
}
