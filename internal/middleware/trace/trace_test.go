package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ecoads/internal/log"
)

func TestMiddleware_RequestIDAndMetrics(t *testing.T) {
	m := NewMiddleware(func(*http.Request) string { return "127.0.0.1" }, log.Discard())

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("generated request id = %q", seen)
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("header %q != context %q", rr.Header().Get(HeaderRequestID), seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Fatalf("incoming request id not kept: %q", seen)
	}

	got := m.GetMetrics()
	if got.TotalRequests != 2 || got.ServerErrors != 1 {
		t.Fatalf("metrics = %+v", got)
	}
}

func TestValidRequestID(t *testing.T) {
	cases := map[string]bool{
		"":                      false,
		"req_0011":              true,
		"has space":             false,
		strings.Repeat("x", 65): false,
		"line\nbreak":           false,
	}
	for in, want := range cases {
		if got := validRequestID(in); got != want {
			t.Errorf("validRequestID(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Fatalf("id = %q", id)
	}
}
