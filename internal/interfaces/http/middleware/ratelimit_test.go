package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubLimiter struct {
	lastLimit int
	calls     int
	allow     bool
	err       error
}

func (s *stubLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.calls++
	s.lastLimit = limit
	return s.allow, s.err
}

func rateLimitRequest(t *testing.T, cfg RateLimitConfig, limiter RateLimiter) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(cfg, limiter))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitWindowIncludesBurst(t *testing.T) {
	limiter := &stubLimiter{allow: true}
	w := rateLimitRequest(t, RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 10,
		Burst:             5,
	}, limiter)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, limiter.calls)
	// 窗口配额 = 速率 + 突发余量
	assert.Equal(t, 15, limiter.lastLimit)
}

func TestRateLimitRejectsOverQuota(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	w := rateLimitRequest(t, RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 1,
	}, limiter)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	w := rateLimitRequest(t, RateLimitConfig{Enabled: false}, limiter)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, limiter.calls)
}

func TestRateLimitLimiterErrorFailsOpen(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis down")}
	w := rateLimitRequest(t, RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 1,
	}, limiter)

	assert.Equal(t, http.StatusOK, w.Code)
}
