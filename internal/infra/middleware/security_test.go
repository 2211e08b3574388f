package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(okHandler())

	req := httptest.NewRequest("GET", "/ws", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	expectedHeaders := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Content-Security-Policy": "default-src 'none'",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
	}
	for header, expectedValue := range expectedHeaders {
		if got := w.Header().Get(header); got != expectedValue {
			t.Errorf("Header %s = %q, want %q", header, got, expectedValue)
		}
	}

	if hsts := w.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("HSTS header should not be set without TLS, got: %q", hsts)
	}
}

func TestSecurityHeaders_HSTS_WithTLS(t *testing.T) {
	handler := SecurityHeaders(okHandler())

	req := httptest.NewRequest("GET", "/ws", nil)
	req.TLS = &tls.ConnectionState{}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func serve(h http.Handler, remote string) int {
	req := httptest.NewRequest("GET", "/ws", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestLimiter_BlocksExcessiveAttempts(t *testing.T) {
	handler := NewLimiter(6, 3).Wrap(okHandler())

	var allowed, blocked int
	for i := 0; i < 10; i++ {
		switch serve(handler, "127.0.0.1:40000") {
		case http.StatusOK:
			allowed++
		case http.StatusTooManyRequests:
			blocked++
		}
	}

	if allowed != 3 {
		t.Errorf("allowed = %d, want 3", allowed)
	}
	if blocked != 7 {
		t.Errorf("blocked = %d, want 7", blocked)
	}
}

func TestLimiter_SeparatesHosts(t *testing.T) {
	handler := NewLimiter(6, 2).Wrap(okHandler())

	for i := 0; i < 3; i++ {
		serve(handler, "127.0.0.1:40000")
	}
	if got := serve(handler, "127.0.0.1:40001"); got != http.StatusTooManyRequests {
		t.Errorf("same host on a new port: got %d, want 429", got)
	}
	if got := serve(handler, "[::1]:40000"); got != http.StatusOK {
		t.Errorf("other host: got %d, want 200", got)
	}
}

func TestLimiter_IgnoresForwardedFor(t *testing.T) {
	handler := NewLimiter(6, 1).Wrap(okHandler())

	serve(handler, "127.0.0.1:40000")
	req := httptest.NewRequest("GET", "/ws", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("spoofed header bypassed limit: got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	handler := NewLimiter(0, 0).Wrap(okHandler())
	for i := 0; i < 50; i++ {
		if got := serve(handler, "127.0.0.1:40000"); got != http.StatusOK {
			t.Fatalf("request %d: got %d", i, got)
		}
	}
}

func TestLimiter_TokenRefill(t *testing.T) {
	l := NewLimiter(60, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	if !l.Allow("h") {
		t.Fatal("first attempt should pass")
	}
	if l.Allow("h") {
		t.Fatal("second attempt should be blocked")
	}
	now = now.Add(1100 * time.Millisecond)
	if !l.Allow("h") {
		t.Error("attempt after refill should pass")
	}
}

func TestLimiter_SweepsStaleHosts(t *testing.T) {
	l := NewLimiter(60, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	if got := l.Tracked(); got != 2 {
		t.Fatalf("tracked = %d, want 2", got)
	}

	now = now.Add(staleAfter + time.Minute)
	l.Allow("c")
	if got := l.Tracked(); got != 1 {
		t.Errorf("tracked after sweep = %d, want 1", got)
	}
}
