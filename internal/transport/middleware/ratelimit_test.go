package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimited(t *testing.T, rps float64, burst int) http.Handler {
	t.Helper()
	rl := NewRateLimiter(rps, burst, time.Minute)
	t.Cleanup(rl.Stop)
	return rl.Limit()(okHandler())
}

func hit(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/imports", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_AllowsBurst(t *testing.T) {
	t.Parallel()
	h := newLimited(t, 1, 3)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1000").Code, "request %d", i)
	}
}

func TestRateLimiter_BlocksOverBurst(t *testing.T) {
	t.Parallel()
	h := newLimited(t, 0.5, 1)

	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1000").Code)

	rec := hit(h, "10.0.0.1:2000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "ports of one host share a budget")
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":429,"message":"Too Many Requests"}`, rec.Body.String())
}

func TestRateLimiter_ClientsIndependent(t *testing.T) {
	t.Parallel()
	h := newLimited(t, 0.01, 1)

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1").Code)
}

func TestRateLimiter_Refill(t *testing.T) {
	t.Parallel()
	h := newLimited(t, 50, 1)

	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1").Code)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(1, 1, time.Hour)
	t.Cleanup(rl.Stop)

	rl.limiterFor("a")
	rl.evictIdle(time.Now().Add(clientIdleTTL + time.Second))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.clients)
}

func TestRateLimiter_StopTwice(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(1, 1, time.Hour)

	assert.NotPanics(t, func() {
		rl.Stop()
		rl.Stop()
	})
}

func TestRateLimiter_ZeroCleanupInterval(t *testing.T) {
	t.Parallel()

	var rl *RateLimiter
	require.NotPanics(t, func() { rl = NewRateLimiter(1, 1, 0) })
	rl.Stop()
}
