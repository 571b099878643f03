package middlewares

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if ok, _, _ := l.Allow(ctx, "k"); !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	ok, retry, _ := l.Allow(ctx, "k")
	if ok {
		t.Fatalf("third request should be limited")
	}
	if retry != time.Minute {
		t.Fatalf("retryAfter = %v, want 1m", retry)
	}

	if ok, _, _ := l.Allow(ctx, "other"); !ok {
		t.Fatalf("keys must be independent")
	}

	now = now.Add(time.Minute)
	if ok, _, _ := l.Allow(ctx, "k"); !ok {
		t.Fatalf("new window should allow again")
	}
}

func setupRedisLimiter(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisLimiter(rdb, limit, window), mr
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	l, mr := setupRedisLimiter(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := l.Allow(ctx, "login:1.2.3.4")
		if err != nil || !ok {
			t.Fatalf("request %d: allowed=%v err=%v", i, ok, err)
		}
	}

	ok, retry, err := l.Allow(ctx, "login:1.2.3.4")
	if err != nil || ok {
		t.Fatalf("third request: allowed=%v err=%v", ok, err)
	}
	if retry <= 0 || retry > time.Minute {
		t.Fatalf("retryAfter = %v", retry)
	}

	if ttl := mr.TTL("ratelimit:login:1.2.3.4"); ttl != time.Minute {
		t.Fatalf("window ttl = %v, want 1m", ttl)
	}

	mr.FastForward(time.Minute)

	if ok, _, err := l.Allow(ctx, "login:1.2.3.4"); err != nil || !ok {
		t.Fatalf("after window: allowed=%v err=%v", ok, err)
	}
}

// failFirstExpire drops the first PEXPIRE the client sends.
type failFirstExpire struct {
	failed bool
}

func (h *failFirstExpire) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *failFirstExpire) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "pexpire" && !h.failed {
			h.failed = true
			return errors.New("i/o timeout")
		}
		return next(ctx, cmd)
	}
}

func (h *failFirstExpire) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisLimiter_RecoversFromLostExpire(t *testing.T) {
	l, mr := setupRedisLimiter(t, 1, time.Minute)
	l.rdb.AddHook(&failFirstExpire{})
	ctx := context.Background()
	const key = "ratelimit:login:5.6.7.8"

	if _, _, err := l.Allow(ctx, "login:5.6.7.8"); err == nil {
		t.Fatalf("first request: expected the expire error to surface")
	}
	if ttl := mr.TTL(key); ttl != 0 {
		t.Fatalf("counter should be left without a ttl, got %v", ttl)
	}

	ok, retry, err := l.Allow(ctx, "login:5.6.7.8")
	if err != nil || ok {
		t.Fatalf("second request: allowed=%v err=%v", ok, err)
	}
	if retry != time.Minute {
		t.Fatalf("retryAfter = %v, want 1m", retry)
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("next call must restore the ttl, got %v", ttl)
	}

	mr.FastForward(time.Minute)

	if ok, _, err := l.Allow(ctx, "login:5.6.7.8"); err != nil || !ok {
		t.Fatalf("after window: allowed=%v err=%v", ok, err)
	}
}

type erroringLimiter struct{}

func (erroringLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 0, errors.New("redis: connection refused")
}

func TestRateLimit_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(l Limiter) *gin.Engine {
		r := gin.New()
		r.Use(ErrorHandler())
		r.POST("/login", RateLimit(l, "login", KeyByIP), func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	r := newRouter(NewMemoryLimiter(1, time.Minute))

	do := func(r *gin.Engine) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(r); w.Code != http.StatusOK {
		t.Fatalf("first request got %d", w.Code)
	}

	w := do(r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request got %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}

	// a broken backend fails open
	if w := do(newRouter(erroringLimiter{})); w.Code != http.StatusOK {
		t.Fatalf("limiter error should not block, got %d", w.Code)
	}
}
