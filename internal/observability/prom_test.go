package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveDB_CountsErrorsByClass(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	_ = p.ObserveDB("users.create", func() error { return &pgconn.PgError{Code: "23505"} })
	_ = p.ObserveDB("users.get_by_id", func() error { return pgx.ErrNoRows })
	_ = p.ObserveDB("users.get_by_id", func() error { return nil })

	if got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.create", "unique_violation")); got != 1 {
		t.Fatalf("unique_violation count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(p.DbErrorsTotal); got != 1 {
		t.Fatalf("no-rows must not be counted as an error, series = %d", got)
	}
}

func TestClassifyDBErr(t *testing.T) {
	tests := map[string]error{
		"timeout":         fmt.Errorf("users.list: %w", context.DeadlineExceeded),
		"canceled":        context.Canceled,
		"unknown":         errors.New("weird"),
		"check_violation": &pgconn.PgError{Code: "23514"},
		"pg_42P01":        &pgconn.PgError{Code: "42P01"},
	}
	for want, err := range tests {
		if got := classifyDBErr(err); got != want {
			t.Fatalf("classifyDBErr(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestGinHandleMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := NewProm(prometheus.NewRegistry())

	r := gin.New()
	r.Use(p.GinHandleMiddleware())
	r.GET("/admin/user/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/user/abc", nil))

	if got := testutil.ToFloat64(p.RequestsTotal.WithLabelValues(http.MethodGet, "/admin/user/:id", "200")); got != 1 {
		t.Fatalf("requests_total = %v, want 1", got)
	}
}

func TestNilPromIsSafe(t *testing.T) {
	var p *Prom
	p.AuthEvent("login", "ok")
	p.ObserveMail("sent", time.Second)
}
