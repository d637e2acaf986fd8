package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		requests int
		calls    int
		wantPass int
	}{
		{name: "within allowance", requests: 30, calls: 30, wantPass: 30},
		{name: "over allowance", requests: 30, calls: 31, wantPass: 30},
		{name: "tiny allowance", requests: 2, calls: 5, wantPass: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
			rl := newLimiter(tt.requests, time.Minute, clock.Now)
			defer rl.Stop()

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if rl.Allow("1.2.3.4") {
					passed++
				}
			}
			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestKeyedRateLimiter_RefillsOverWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := newLimiter(30, time.Minute, clock.Now)
	defer rl.Stop()

	for i := 0; i < 30; i++ {
		require.True(t, rl.Allow("a"))
	}
	require.False(t, rl.Allow("a"))

	clock.Advance(2 * time.Second)
	assert.True(t, rl.Allow("a"), "one token every two seconds")
	assert.False(t, rl.Allow("a"))

	clock.Advance(time.Minute)
	passed := 0
	for i := 0; i < 40; i++ {
		if rl.Allow("a") {
			passed++
		}
	}
	assert.Equal(t, 30, passed)
}

func TestKeyedRateLimiter_IndependentKeys(t *testing.T) {
	rl := New(1, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
}

func TestKeyedRateLimiter_Evict(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := newLimiter(5, time.Minute, clock.Now)
	defer rl.Stop()

	rl.Allow("old")
	clock.Advance(90 * time.Second)
	rl.Allow("fresh")
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, rl.Evict())
	assert.Equal(t, 1, rl.Len())
}

func TestKeyedRateLimiter_StopTwice(t *testing.T) {
	rl := New(1, time.Minute)
	rl.Stop()
	rl.Stop()
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := New(2, time.Minute)
	defer rl.Stop()

	r := gin.New()
	r.Use(Middleware(rl, time.Minute))
	r.GET("/api/tones/", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/about/", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("/api/tones/", "203.0.113.1").Code)
	assert.Equal(t, http.StatusOK, do("/api/tones/", "203.0.113.1").Code)

	w := do("/api/tones/", "203.0.113.1")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Rate limit exceeded. Please try again later.", body["error"])
	assert.Equal(t, float64(60), body["retry_after"])

	assert.Equal(t, http.StatusOK, do("/api/tones/", "203.0.113.2").Code, "other IPs unaffected")
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do("/about/", "203.0.113.1").Code, "pages are not limited")
	}
}

func TestMiddleware_UntrustedPeerCannotRotateKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := New(1, time.Minute)
	defer rl.Stop()

	r := gin.New()
	require.NoError(t, r.SetTrustedProxies([]string{"127.0.0.1"}))
	r.Use(Middleware(rl, time.Minute))
	r.GET("/api/tones/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for _, fwd := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/tones/", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Forwarded-For", fwd)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, rl.Len())
}
