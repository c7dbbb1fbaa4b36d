package httpmw

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/sampleform/internal/log"
)

// hijackRecorder wraps httptest.ResponseRecorder with Hijacker support.
type hijackRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func processTimeOf(t *testing.T, rec *httptest.ResponseRecorder) float64 {
	t.Helper()
	raw := rec.Header().Get(ProcessTimeHeader)
	if raw == "" {
		t.Fatal("X-Process-Time missing")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		t.Fatalf("X-Process-Time %q is not a number: %v", raw, err)
	}
	if v < 0 {
		t.Fatalf("X-Process-Time = %v, want non-negative", v)
	}
	return v
}

func serveTimed(h http.Handler, req *http.Request) (*httptest.ResponseRecorder, *flatLogger) {
	fl := newFlatLogger()
	req = req.WithContext(log.WithContext(req.Context(), fl))
	rec := httptest.NewRecorder()
	ProcessTime()(h).ServeHTTP(rec, req)
	return rec, fl
}

func TestProcessTime_HeaderOnWrite(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	rec, _ := serveTimed(h, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	processTimeOf(t, rec)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProcessTime_HeaderOnWriteHeader(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	rec, _ := serveTimed(h, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	processTimeOf(t, rec)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProcessTime_HeaderWhenHandlerWritesNothing(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	rec, _ := serveTimed(h, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	processTimeOf(t, rec)
}

func TestProcessTime_ReflectsHandlerDuration(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	rec, _ := serveTimed(h, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if v := processTimeOf(t, rec); v < 0.02 {
		t.Fatalf("X-Process-Time = %v, want at least the handler's sleep", v)
	}
}

func TestProcessTime_LogLine(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("hello"))
	})
	_, fl := serveTimed(h, httptest.NewRequest(http.MethodPost, "/api/submit-sample-form", http.NoBody))

	entry, ok := fl.lastInfo()
	if !ok {
		t.Fatal("no timing line logged")
	}
	if !strings.HasPrefix(entry.msg, "Request POST /api/submit-sample-form processed in ") || !strings.HasSuffix(entry.msg, " secs") {
		t.Fatalf("msg = %q", entry.msg)
	}
	secs := strings.TrimSuffix(strings.TrimPrefix(entry.msg, "Request POST /api/submit-sample-form processed in "), " secs")
	if i := strings.IndexByte(secs, '.'); i < 0 || len(secs)-i-1 != 4 {
		t.Fatalf("duration %q should have four decimals", secs)
	}
	if v, _ := fieldValue(entry.fields, "http.response.status_code"); v != http.StatusCreated {
		t.Fatalf("status_code = %v", v)
	}
	if v, _ := fieldValue(entry.fields, "http.response.body.size"); v != int64(5) {
		t.Fatalf("body.size = %v", v)
	}
}

func TestProcessTime_LeavesRequestFieldsToLogger(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	_, fl := serveTimed(h, httptest.NewRequest(http.MethodGet, "/x", http.NoBody))

	entry, _ := fl.lastInfo()
	for _, k := range []string{"http.request.method", "url.path"} {
		if _, ok := fieldValue(entry.fields, k); ok {
			t.Fatalf("%s is set by WithLogger and must not be repeated", k)
		}
	}
}

func TestProcessTime_RoutePatternFromChi(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {})

	_, fl := serveTimed(r, httptest.NewRequest(http.MethodGet, "/users/42", http.NoBody))

	entry, _ := fl.lastInfo()
	if v, _ := fieldValue(entry.fields, "http.route"); v != "/users/{id}" {
		t.Fatalf("http.route = %v", v)
	}
}

func TestProcessTime_RouteFallsBackToPath(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	_, fl := serveTimed(h, httptest.NewRequest(http.MethodGet, "/plain", http.NoBody))

	entry, _ := fl.lastInfo()
	if v, _ := fieldValue(entry.fields, "http.route"); v != "/plain" {
		t.Fatalf("http.route = %v", v)
	}
}

func TestProcessTime_HeaderOnRecoveredPanic(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rec, _ := serveTimed(Recover(nil, nil)(h), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	processTimeOf(t, rec)
}

func TestTimingWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	tw := &timingWriter{ResponseWriter: rec, start: time.Now()}

	tw.WriteHeader(http.StatusAccepted)
	tw.WriteHeader(http.StatusTeapot)

	if tw.status != http.StatusAccepted {
		t.Fatalf("status = %d", tw.status)
	}
}

func TestTimingWriter_Hijack(t *testing.T) {
	hr := &hijackRecorder{ResponseRecorder: httptest.NewRecorder()}
	tw := &timingWriter{ResponseWriter: hr, start: time.Now()}

	if _, _, err := tw.Hijack(); err != nil {
		t.Fatalf("Hijack: %v", err)
	}
	if !hr.hijacked {
		t.Fatal("underlying Hijack not called")
	}

	plain := &timingWriter{ResponseWriter: httptest.NewRecorder(), start: time.Now()}
	if _, _, err := plain.Hijack(); err == nil {
		t.Fatal("expected error when Hijacker unsupported")
	}
}

func TestTimingWriter_FlushCommits(t *testing.T) {
	rec := httptest.NewRecorder()
	tw := &timingWriter{ResponseWriter: rec, start: time.Now()}

	tw.Flush()

	if !rec.Flushed {
		t.Fatal("recorder not flushed")
	}
	processTimeOf(t, rec)
}

func TestFormatSeconds(t *testing.T) {
	if got := formatSeconds(1500 * time.Millisecond); got != "1.5" {
		t.Fatalf("formatSeconds = %q", got)
	}
	if got := formatSeconds(0); got != "0" {
		t.Fatalf("formatSeconds(0) = %q", got)
	}
}
