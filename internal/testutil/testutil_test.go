package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// recordingTB captures Errorf calls instead of failing the running test.
type recordingTB struct {
	testing.TB
	errors []string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	rec := &recordingTB{TB: t}
	AssertStatusCode(rec, http.StatusOK, http.StatusOK)
	if len(rec.errors) != 0 {
		t.Fatalf("matching codes reported %v", rec.errors)
	}

	AssertStatusCode(rec, http.StatusOK, http.StatusBadRequest)
	if len(rec.errors) != 1 || rec.errors[0] != "status code = 200, want 400" {
		t.Errorf("mismatch reported %v", rec.errors)
	}
}

func TestAssertBody(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	io.WriteString(w, "Queue cleared")

	rec := &recordingTB{TB: t}
	AssertBody(rec, w, "Queue cleared")
	AssertBody(rec, w, "Log file cleared!")
	if len(rec.errors) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(rec.errors), rec.errors)
	}
	if !strings.Contains(rec.errors[0], `"Log file cleared!"`) {
		t.Errorf("error = %q", rec.errors[0])
	}
}

func TestNewLocalRequest(t *testing.T) {
	t.Parallel()

	req := NewLocalRequest(http.MethodDelete, "/log", "s3cret")
	if req.Method != http.MethodDelete || req.URL.Path != "/log" {
		t.Errorf("got %s %s", req.Method, req.URL.Path)
	}
	if req.RemoteAddr != LoopbackAddr {
		t.Errorf("RemoteAddr = %s", req.RemoteAddr)
	}
	if got := req.Header.Get("X-API-Key"); got != "s3cret" {
		t.Errorf("X-API-Key = %q", got)
	}
	if NewLocalRequest(http.MethodGet, "/", "").Header.Get("X-API-Key") != "" {
		t.Error("empty key must not set the header")
	}
}

func TestServe(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, r.Method)
	})
	rec := Serve(h, NewLocalRequest(http.MethodPost, "/reset", ""))
	AssertStatusCode(t, rec.Code, http.StatusTeapot)
	AssertBody(t, rec, "POST")
}
