package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/db"
	httpx "github.com/geocoder89/storefront/internal/http"
	"github.com/geocoder89/storefront/internal/http/handlers"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/geocoder89/storefront/internal/notifications"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/geocoder89/storefront/internal/redisclient"
	"github.com/geocoder89/storefront/internal/repo/memory"
	"github.com/geocoder89/storefront/internal/repo/postgres"
	"github.com/geocoder89/storefront/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		Enabled:     cfg.OTELEnabled,
		ServiceName: observability.ServiceName,
		Environment: cfg.Env,
		Endpoint:    cfg.OTELEndpoint,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		tctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(tctx)
	}()

	prom := observability.NewProm(prometheus.DefaultRegisterer)
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)

	var (
		users httpx.UserStore
		ping  func(context.Context) error
	)

	switch cfg.Store {
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			log.Error("db migrate failed", "err", err)
			os.Exit(1)
		}

		users = postgres.NewUsersRepo(pool, prom)
		ping = pool.Ping
	default:
		log.Warn("using in-memory user store; data is lost on restart")
		users = memory.NewUsersRepo()
	}

	seeded, err := db.EnsureAdminUser(ctx, users, hasher, cfg)
	if err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}
	if seeded {
		log.Info("admin user created", "email", cfg.AdminEmail)
	}

	var limiter middlewares.Limiter = middlewares.NewMemoryLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	if cfg.RedisAddr != "" {
		rc, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn("redis unavailable, rate limiting per instance", "err", err)
		} else {
			defer rc.Close()
			limiter = middlewares.NewRedisLimiter(rc.Raw(), cfg.RateLimitRequests, cfg.RateLimitWindow)
		}
	}

	var transport notifications.Mailer
	switch cfg.MailTransport {
	case "smtp":
		transport = notifications.NewSMTPMailer(notifications.SMTPConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUser,
			Password:  cfg.SMTPPassword,
			FromName:  cfg.SMTPFromName,
			FromEmail: cfg.SMTPFromEmail,
			Timeout:   cfg.MailTimeout,
		})
	default:
		log.Warn("mail transport is log, reset emails are not delivered")
		transport = notifications.NewLogMailer(log)
	}
	mailer := notifications.NewProtectedMailer(transport, notifications.ProtectedMailerConfig{
		Timeout: cfg.MailTimeout,
	}, prom)

	router := httpx.NewRouter(httpx.Deps{
		Env:     cfg.Env,
		Users:   users,
		Hasher:  hasher,
		Tokens:  auth.NewManager(cfg.JWTSecret, cfg.JWTExpiresIn),
		Mailer:  mailer,
		Limiter: limiter,
		Prom:    prom,
		Metrics: httpx.MetricsHandler(),
		Ping:    ping,
		Auth: handlers.AuthOptions{
			CookieTTL:     cfg.CookieTTL(),
			CookieSecure:  cfg.CookieSecure,
			ResetTTL:      cfg.ResetTokenTTL,
			PublicBaseURL: cfg.PublicBaseURL,
			AppName:       cfg.AppDisplayName,
		},
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// forgot-password waits on the mail transport
		WriteTimeout: 15*time.Second + cfg.MailTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return
	}
	log.Info("shutdown complete")
}
