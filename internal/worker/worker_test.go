package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/repo/memory"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingObserver struct{ total atomic.Int64 }

func (o *countingObserver) ResetsSwept(n int64) { o.total.Add(n) }

type fakeSweeper struct {
	clearFn func(ctx context.Context, now time.Time) (int64, error)
}

func (f *fakeSweeper) ClearExpiredResets(ctx context.Context, now time.Time) (int64, error) {
	return f.clearFn(ctx, now)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepOnce_ClearsOnlyExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := memory.NewUsersRepo()

	mk := func(email string, expiry time.Time) user.User {
		u := user.NewFromRegister(user.RegisterRequest{Name: "U", Email: email}, "hash")
		digest := "digest-" + email
		u.SetReset(digest, expiry)
		created, err := repo.Create(ctx, u)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return created
	}

	expired := mk("old@x.com", now.Add(-time.Minute))
	boundary := mk("edge@x.com", now)
	live := mk("live@x.com", now.Add(time.Minute))

	obs := &countingObserver{}
	w := New(Config{}, repo, obs, quietLogger())
	w.now = func() time.Time { return now }

	n, err := w.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce error: %v", err)
	}
	if n != 2 || obs.total.Load() != 2 {
		t.Fatalf("cleared %d (observed %d), want 2", n, obs.total.Load())
	}

	for _, id := range []string{expired.ID, boundary.ID} {
		u, _ := repo.GetByID(ctx, id)
		if u.ResetPasswordTokenHash != nil || u.ResetPasswordExpiry != nil {
			t.Fatalf("user %s still has reset state", u.Email)
		}
	}
	if u, _ := repo.GetByID(ctx, live.ID); u.ResetPasswordTokenHash == nil {
		t.Fatalf("unexpired reset token must survive the sweep")
	}
}

func TestRun_StopsOnCancelAndTracksReadiness(t *testing.T) {
	var calls atomic.Int32
	sweeper := &fakeSweeper{clearFn: func(ctx context.Context, now time.Time) (int64, error) {
		calls.Add(1)
		return 0, errors.New("db unavailable")
	}}

	w := New(Config{Interval: 10 * time.Millisecond}, sweeper, nil, quietLogger())
	health := w.HealthHandler()

	ready := func() int {
		rec := httptest.NewRecorder()
		health.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		return rec.Code
	}

	if code := ready(); code != http.StatusServiceUnavailable {
		t.Fatalf("before Run: expected 503, got %d", code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if calls.Load() < 2 {
		t.Fatalf("expected repeated sweeps despite errors, got %d", calls.Load())
	}
	if code := ready(); code != http.StatusOK {
		t.Fatalf("while running: expected 200, got %d", code)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}

	if code := ready(); code != http.StatusServiceUnavailable {
		t.Fatalf("after Run: expected 503, got %d", code)
	}

	rec := httptest.NewRecorder()
	health.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}
}
