package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func wrapped(cfg SecConfig) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(cfg)(ok)
}

func do(t *testing.T, h http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOpenPathsBypassAuth(t *testing.T) {
	h := wrapped(SecConfig{AdminKeys: map[string]struct{}{"secret": {}}, RPS: 100, Burst: 100})
	for _, p := range []string{"/healthz", "/readyz", "/metrics"} {
		if rec := do(t, h, p, nil); rec.Code != http.StatusOK {
			t.Fatalf("%s = %d, want 200", p, rec.Code)
		}
	}
}

func TestAdminKeyRequired(t *testing.T) {
	h := wrapped(SecConfig{AdminKeys: map[string]struct{}{"secret": {}}, RPS: 100, Burst: 100})

	if rec := do(t, h, "/v1/stats", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key = %d, want 401", rec.Code)
	}
	if rec := do(t, h, "/v1/stats", map[string]string{"X-API-Key": "wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key = %d, want 401", rec.Code)
	}
	if rec := do(t, h, "/v1/stats", map[string]string{"X-API-Key": "secret"}); rec.Code != http.StatusOK {
		t.Fatalf("X-API-Key = %d, want 200", rec.Code)
	}
	if rec := do(t, h, "/v1/stats", map[string]string{"Authorization": "Bearer secret"}); rec.Code != http.StatusOK {
		t.Fatalf("Bearer = %d, want 200", rec.Code)
	}
}

func TestNoKeysConfiguredAllowsAll(t *testing.T) {
	h := wrapped(SecConfig{RPS: 100, Burst: 100})
	if rec := do(t, h, "/v1/stats", nil); rec.Code != http.StatusOK {
		t.Fatalf("open config = %d, want 200", rec.Code)
	}
}

func TestRateLimitKicksIn(t *testing.T) {
	h := wrapped(SecConfig{RPS: 1, Burst: 2})

	var limited bool
	for i := 0; i < 10; i++ {
		if rec := do(t, h, "/v1/stats", map[string]string{"X-API-Key": "caller"}); rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatalf("burst of 10 requests was never rate limited")
	}
}
