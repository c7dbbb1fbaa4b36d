package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveProbe(h http.Handler) (*httptest.ResponseRecorder, status) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/-/ready", http.NoBody))
	var s status
	_ = json.Unmarshal(rec.Body.Bytes(), &s)
	return rec, s
}

func TestProbeHandlers(t *testing.T) {
	tests := []struct {
		name       string
		h          http.Handler
		wantCode   int
		wantStatus string
		wantReason string
	}{
		{"healthz ok", HealthzHandler(Fixed(true, "")), 200, "ok", ""},
		{"healthz fail", HealthzHandler(Fixed(false, "stuck")), 503, "unhealthy", "stuck"},
		{"healthz nil", HealthzHandler(nil), 200, "ok", ""},
		{"readyz ok", ReadyzHandler(Fixed(true, "")), 200, "ready", ""},
		{"readyz fail", ReadyzHandler(Fixed(false, "shutting down")), 503, "not ready", "shutting down"},
		{"readyz nil", ReadyzHandler(nil), 200, "ready", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, s := serveProbe(tt.h)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if s.Status != tt.wantStatus || s.Reason != tt.wantReason {
				t.Fatalf("body = %+v", s)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("Content-Type = %q", ct)
			}
		})
	}
}

func TestReadyzHandler_PassesRequestContext(t *testing.T) {
	type ctxKey string
	var got any
	p := CheckFunc(func(ctx context.Context) error {
		got = ctx.Value(ctxKey("k"))
		return errors.New("x")
	})

	req := httptest.NewRequest(http.MethodGet, "/-/ready", http.NoBody)
	req = req.WithContext(context.WithValue(req.Context(), ctxKey("k"), "v"))
	ReadyzHandler(p).ServeHTTP(httptest.NewRecorder(), req)

	if got != "v" {
		t.Fatal("request context not passed to probe")
	}
}
