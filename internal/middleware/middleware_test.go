package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

func withAuth(t *testing.T, token string, bypass bool) {
	auth := &config.Get().Auth
	previous := *auth
	auth.Token, auth.Bypass = token, bypass
	t.Cleanup(func() { *auth = previous })
}

func TestWrap_RequiresBearerToken(t *testing.T) {
	withAuth(t, "secret", false)
	var gotTrace string
	handler := Wrap(func(w http.ResponseWriter, r *http.Request) {
		gotTrace, _ = r.Context().Value(config.TRACE_ID_KEY).(string)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.RemoteAddr = "198.51.100.10:4000"
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, gotTrace)

	req = httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.RemoteAddr = "198.51.100.10:4000"
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Trace-Id", "trace-42")
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trace-42", gotTrace)
	assert.Equal(t, "trace-42", rec.Header().Get("X-Trace-Id"))
}

func TestIsValidBearerToken(t *testing.T) {
	log := logger_i.NewLogger("test")

	withAuth(t, "secret", false)
	assert.False(t, IsValidBearerToken("", log))
	assert.False(t, IsValidBearerToken("secret", log))
	assert.False(t, IsValidBearerToken("Bearer wrong", log))
	assert.True(t, IsValidBearerToken("Bearer secret", log))

	withAuth(t, "", false)
	assert.False(t, IsValidBearerToken("Bearer ", log), "an empty configured token never matches")

	withAuth(t, "", true)
	assert.True(t, IsValidBearerToken("", log))
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 2)

	assert.True(t, limiter.GetLimiter("10.0.0.1").Allow())
	assert.True(t, limiter.GetLimiter("10.0.0.1").Allow())
	assert.False(t, limiter.GetLimiter("10.0.0.1").Allow())
	assert.True(t, limiter.GetLimiter("10.0.0.2").Allow())
}

func TestWrap_RateLimited(t *testing.T) {
	withAuth(t, "", true)
	handler := Wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	codes := map[int]int{}
	for i := 0; i < config.BURST_RATE_LIMIT_PER_SECOND+3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rec := httptest.NewRecorder()
		handler(rec, req)
		codes[rec.Code]++
	}
	assert.GreaterOrEqual(t, codes[http.StatusTooManyRequests], 1)
	assert.LessOrEqual(t, codes[http.StatusOK], config.BURST_RATE_LIMIT_PER_SECOND+1)
}

func TestIPRateLimiter_EvictsIdleClients(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(rate.Limit(1), 1)
	limiter.now = func() time.Time { return clock }

	first := limiter.GetLimiter("10.0.0.9")
	assert.False(t, first.AllowN(clock, 2))

	clock = clock.Add(config.RateLimiterIdleTTL + time.Second)
	limiter.GetLimiter("10.0.0.10")

	assert.NotContains(t, limiter.ips, "10.0.0.9")
	assert.Contains(t, limiter.ips, "10.0.0.10")
}
