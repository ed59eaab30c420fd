package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChainAppliesOutsideIn(t *testing.T) {
	t.Parallel()

	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	Chain(okHandler(), tag("outer"), tag("inner")).ServeHTTP(rec, req)

	require.Equal(t, []string{"outer", "inner"}, order)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStaticBearerMiddleware(t *testing.T) {
	t.Parallel()

	h := Chain(okHandler(), StaticBearerMiddleware("secret"))

	do := func(authz string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("accepts the configured token", func(t *testing.T) {
		require.Equal(t, http.StatusOK, do("Bearer secret").Code)
	})

	t.Run("rejects a wrong token", func(t *testing.T) {
		rec := do("Bearer wrong")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	})

	t.Run("rejects missing or malformed headers", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, do("").Code)
		require.Equal(t, http.StatusUnauthorized, do("Basic c2VjcmV0").Code)
	})

	t.Run("empty configured token rejects everything", func(t *testing.T) {
		locked := Chain(okHandler(), StaticBearerMiddleware(""))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer ")
		rec := httptest.NewRecorder()
		locked.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestIPKeyExtractor(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	require.Equal(t, "192.0.2.1", IPKeyExtractor(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	require.Equal(t, "198.51.100.7", IPKeyExtractor(req))

	// X-Forwarded-For wins and only the first hop counts.
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 198.51.100.7")
	require.Equal(t, "203.0.113.9", IPKeyExtractor(req))
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	cfg := RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	h := Chain(okHandler(), RateLimitByIP(cfg))

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, do("192.0.2.1:1").Code)
	require.Equal(t, http.StatusOK, do("192.0.2.1:2").Code)

	rec := do("192.0.2.1:3")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A different source address has its own bucket.
	require.Equal(t, http.StatusOK, do("198.51.100.7:1").Code)
}
