package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/diario/horosafe"
)

// noopValidator allows all URLs (for tests that don't test SSRF).
func noopValidator(_ string) error { return nil }

func TestGet_Success(t *testing.T) {
	// WHAT: GET returns the body and headers.
	// WHY: Core fetcher functionality.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "diario/1.0" {
			t.Errorf("user agent: %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: noopValidator})
	resp, err := f.Get(context.Background(), srv.URL, time.Second)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(resp.Body) != "%PDF-1.4" || resp.Header.Get("Content-Type") != "application/pdf" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestGet_StatusError(t *testing.T) {
	// WHAT: Non-2xx statuses are returned as *StatusError.
	// WHY: Callers classify download failures by status.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(Config{URLValidator: noopValidator}).Get(context.Background(), srv.URL, time.Second)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 404 {
		t.Fatalf("err = %v, want StatusError 404", err)
	}
}

func TestGet_Timeout(t *testing.T) {
	// WHAT: The per-call timeout aborts slow responses.
	// WHY: A hung gazette server must not stall the whole run.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := New(Config{URLValidator: noopValidator}).Get(context.Background(), srv.URL, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("timeout not honored: %v", time.Since(start))
	}
}

func TestGet_MaxBytes(t *testing.T) {
	// WHAT: Bodies larger than MaxBytes are rejected.
	// WHY: Bounds memory on unexpected downloads.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	_, err := New(Config{URLValidator: noopValidator, MaxBytes: 10}).Get(context.Background(), srv.URL, time.Second)
	if !errors.Is(err, horosafe.ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestGet_SSRFBlocked(t *testing.T) {
	// WHAT: The default validator blocks loopback targets.
	// WHY: Manual URL overrides come from HTTP callers.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	_, err := New(Config{}).Get(context.Background(), srv.URL, time.Second)
	if !errors.Is(err, horosafe.ErrSSRF) {
		t.Errorf("err = %v, want ErrSSRF", err)
	}
}

func TestHead_ReturnsHeaders(t *testing.T) {
	// WHAT: HEAD exposes Last-Modified without a body.
	// WHY: Fixed-URL sources derive their edition from it.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s", r.Method)
		}
		w.Header().Set("Last-Modified", "Mon, 01 Jan 2024 10:00:00 GMT")
	}))
	defer srv.Close()

	resp, err := New(Config{URLValidator: noopValidator}).Head(context.Background(), srv.URL, time.Second)
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if resp.Header.Get("Last-Modified") != "Mon, 01 Jan 2024 10:00:00 GMT" || resp.Body != nil {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestFileURL(t *testing.T) {
	// WHAT: file:// URLs are served from disk only when AllowFile is set.
	// WHY: Local testing against saved gazettes without a network.
	path := filepath.Join(t.TempDir(), "doe.pdf")
	if err := os.WriteFile(path, []byte("local"), 0o644); err != nil {
		t.Fatal(err)
	}
	u := "file://" + path

	resp, err := New(Config{AllowFile: true}).Get(context.Background(), u, 0)
	if err != nil || string(resp.Body) != "local" {
		t.Fatalf("get file: %v %+v", err, resp)
	}
	head, err := New(Config{AllowFile: true}).Head(context.Background(), u, 0)
	if err != nil || head.Header.Get("Last-Modified") == "" {
		t.Fatalf("head file: %v %+v", err, head)
	}
	if _, err := New(Config{}).Get(context.Background(), u, 0); err == nil {
		t.Error("file:// must be rejected without AllowFile")
	}
}
