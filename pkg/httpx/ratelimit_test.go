package httpx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/authcore/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestLimiterKeysHaveOwnBuckets(t *testing.T) {
	t.Parallel()
	l := httpx.NewLimiter(httpx.RateLimit{Requests: 2, Window: time.Hour, Burst: 2})

	for range 2 {
		ok, wait := l.Allow("client:backend")
		require.True(t, ok)
		require.Zero(t, wait)
	}

	ok, wait := l.Allow("client:backend")
	require.False(t, ok)
	require.Greater(t, wait, time.Duration(0))
	require.LessOrEqual(t, wait, 30*time.Minute)

	ok, _ = l.Allow("client:spa")
	require.True(t, ok)
}

func TestLimiterRefills(t *testing.T) {
	t.Parallel()
	// One token every 50ms.
	l := httpx.NewLimiter(httpx.RateLimit{Requests: 20, Window: time.Second, Burst: 1})

	ok, _ := l.Allow("ip:203.0.113.7")
	require.True(t, ok)

	for range 5 {
		ok, _ = l.Allow("ip:203.0.113.7")
		require.False(t, ok)
	}

	require.Eventually(t, func() bool {
		ok, _ := l.Allow("ip:203.0.113.7")
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestLimiterDropsIdleBuckets(t *testing.T) {
	t.Parallel()
	l := httpx.NewLimiter(httpx.RateLimit{Requests: 1, Window: 10 * time.Millisecond, Burst: 1})

	l.Allow("client:a")
	l.Allow("client:b")
	require.Equal(t, 2, l.Len())

	time.Sleep(30 * time.Millisecond)
	l.Allow("client:c")
	require.Equal(t, 1, l.Len())
}

func TestLimiterConcurrentCallers(t *testing.T) {
	t.Parallel()
	l := httpx.NewLimiter(httpx.RateLimit{Requests: 10, Window: time.Hour, Burst: 10})

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("client:backend"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 10, allowed.Load())
}

func TestWriteRateLimited(t *testing.T) {
	t.Parallel()

	limit := httpx.RateLimit{Requests: 5, Window: time.Minute, Burst: 5}
	tests := map[string]struct {
		wait       time.Duration
		retryAfter string
	}{
		"rounds up":        {wait: 1500 * time.Millisecond, retryAfter: "2"},
		"at least 1s":      {wait: 0, retryAfter: "1"},
		"whole seconds":    {wait: 12 * time.Second, retryAfter: "12"},
		"sub-second waits": {wait: 10 * time.Millisecond, retryAfter: "1"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			httpx.WriteRateLimited(rec, limit, tc.wait)

			require.Equal(t, http.StatusTooManyRequests, rec.Code)
			require.Equal(t, tc.retryAfter, rec.Header().Get("Retry-After"))
			require.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
			require.Equal(t, "1m0s", rec.Header().Get("X-RateLimit-Window"))
			require.Contains(t, rec.Header().Get("Content-Type"), "application/json")

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			require.Equal(t, "rate_limit_exceeded", body["error"])
			require.NotEmpty(t, body["error_description"])
		})
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		remote  string
		headers map[string]string
		want    string
	}{
		"socket address":       {remote: "192.0.2.10:52100", want: "192.0.2.10"},
		"socket without port":  {remote: "192.0.2.10", want: "192.0.2.10"},
		"first forwarded hop":  {remote: "10.0.0.1:80", headers: map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.2"}, want: "198.51.100.4"},
		"real ip header":       {remote: "10.0.0.1:80", headers: map[string]string{"X-Real-IP": " 198.51.100.5 "}, want: "198.51.100.5"},
		"forwarded beats real": {remote: "10.0.0.1:80", headers: map[string]string{"X-Forwarded-For": "198.51.100.4", "X-Real-IP": "198.51.100.5"}, want: "198.51.100.4"},
		"blank forwarded":      {remote: "10.0.0.1:80", headers: map[string]string{"X-Forwarded-For": " , 10.0.0.2"}, want: "10.0.0.1"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/livez", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tc.want, httpx.ClientIP(req))
		})
	}
}

func TestRateLimitByIP(t *testing.T) {
	t.Parallel()

	var served atomic.Int32
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		served.Add(1)
		w.WriteHeader(http.StatusOK)
	}), httpx.RateLimitByIP(httpx.NewLimiter(httpx.RateLimit{Requests: 2, Window: time.Hour, Burst: 2})))

	get := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, get("192.0.2.10:1000").Code)
	require.Equal(t, http.StatusOK, get("192.0.2.10:1001").Code)

	rec := get("192.0.2.10:1002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	require.EqualValues(t, 2, served.Load())

	require.Equal(t, http.StatusOK, get("192.0.2.11:1000").Code)
}

func TestRateLimitMiddlewareCustomKey(t *testing.T) {
	t.Parallel()

	l := httpx.NewLimiter(httpx.RateLimit{Requests: 1, Window: time.Hour, Burst: 1})
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), httpx.RateLimitMiddleware(l, func(r *http.Request) string {
		return "client:" + r.Header.Get("X-Client")
	}))

	call := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/oauth2/introspect", nil)
		req.Header.Set("X-Client", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, call("backend"))
	require.Equal(t, http.StatusTooManyRequests, call("backend"))
	require.Equal(t, http.StatusNoContent, call("api"))
}
