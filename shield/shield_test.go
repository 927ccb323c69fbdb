package shield

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(r.Method))
	})
}

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestDefaultAPIStack_Headers(t *testing.T) {
	// WHAT: The API stack sets security headers and serves HEAD through GET.
	// WHY: Responses carry gazette URLs and must never be framed or cached.
	h := chain(okHandler(), DefaultAPIStack()...)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/health", nil))

	if rec.Code != 200 || rec.Body.String() != "GET" {
		t.Errorf("HEAD = %d %q", rec.Code, rec.Body.String())
	}
	for k, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestMaxBody(t *testing.T) {
	// WHAT: Bodies past the limit fail to read.
	// WHY: Admin and check routes decode JSON from untrusted clients.
	var readErr error
	h := MaxBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		for readErr == nil {
			_, readErr = r.Body.Read(buf)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 32))))
	var mbe *http.MaxBytesError
	if !errors.As(readErr, &mbe) || mbe.Limit != 8 {
		t.Errorf("read err = %v", readErr)
	}
}

func TestRateLimiter_PerIP(t *testing.T) {
	// WHAT: Each IP gets its own bucket; exhaustion answers 429 JSON.
	// WHY: One noisy client must not trigger gazette downloads in a loop.
	rl := NewRateLimiter(RateLimitConfig{PerMinute: 2})
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Middleware(okHandler())

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/check", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("10.0.0.1"); rec.Code != 200 {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
	rec := do("10.0.0.1")
	if rec.Code != http.StatusTooManyRequests || !strings.Contains(rec.Body.String(), "rate limit") || rec.Header().Get("Retry-After") == "" {
		t.Errorf("third request = %d %q", rec.Code, rec.Body.String())
	}
	if rec := do("10.0.0.2"); rec.Code != 200 {
		t.Errorf("other IP = %d", rec.Code)
	}

	now = now.Add(31 * time.Second)
	if rec := do("10.0.0.1"); rec.Code != 200 {
		t.Errorf("after refill = %d", rec.Code)
	}
}

func TestRateLimiter_DropsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{PerMinute: 1, IdleTTL: time.Minute})
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow("a")
	now = now.Add(2 * time.Minute)
	rl.Allow("b")
	if len(rl.visitors) != 1 {
		t.Errorf("visitors = %d, want 1", len(rl.visitors))
	}
}

func TestExtractIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	if got := ExtractIP(r); got != "192.0.2.7" {
		t.Errorf("RemoteAddr ip = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ExtractIP(r); got != "203.0.113.9" {
		t.Errorf("XFF ip = %q", got)
	}
}

func TestGetLogger_Default(t *testing.T) {
	if GetLogger(httptest.NewRequest("GET", "/", nil).Context()) == nil {
		t.Error("nil logger")
	}
}
