package http

import (
	"context"
	"net/http"

	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/http/handlers"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/geocoder89/storefront/internal/notifications"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const APIPrefix = "/api/v1"

// UserStore is everything the HTTP surface needs from a credential store.
// Both repo/memory and repo/postgres satisfy it.
type UserStore interface {
	handlers.UserStore
	List(ctx context.Context) ([]user.User, error)
	UpdateAccount(ctx context.Context, id, name, email, role string) error
	Delete(ctx context.Context, id string) error
}

type TokenManager interface {
	handlers.TokenIssuer
	middlewares.TokenVerifier
}

type Deps struct {
	Env     string
	Users   UserStore
	Hasher  handlers.PasswordHasher
	Tokens  TokenManager
	Mailer  notifications.Mailer
	Limiter middlewares.Limiter
	Prom    *observability.Prom
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Ping backs /readyz; nil means always ready.
	Ping func(ctx context.Context) error

	Auth           handlers.AuthOptions
	AllowedOrigins []string
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(middlewares.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(observability.ServiceName))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.AllowedOrigins))
	r.Use(middlewares.ErrorHandler())

	health := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	if d.Auth.ResetPathPrefix == "" {
		d.Auth.ResetPathPrefix = APIPrefix + "/password/reset/"
	}

	authHandler := handlers.NewAuthHandler(d.Users, d.Hasher, d.Tokens, d.Mailer, d.Prom, d.Auth)
	adminHandler := handlers.NewAdminHandler(d.Users)
	session := middlewares.NewSessionMiddleware(d.Tokens, d.Users, authHandler.CookieName())

	api := r.Group(APIPrefix)
	api.Use(middlewares.MaxBodyBytes(middlewares.DefaultMaxBodyBytes))
	api.Use(middlewares.RequireJSON())

	throttle := func(scope string) gin.HandlerFunc {
		if d.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middlewares.RateLimit(d.Limiter, scope, middlewares.KeyByIP)
	}

	// public
	api.POST("/register", authHandler.Register)
	api.POST("/login", throttle("login"), authHandler.Login)
	api.POST("/password/forgot", throttle("forgot"), authHandler.ForgotPassword)
	api.PUT("/password/reset/:token", authHandler.ResetPassword)
	api.GET("/logout", authHandler.Logout)

	// session
	authed := api.Group("")
	authed.Use(session.RequireSession())
	authed.GET("/me", authHandler.Me)
	authed.PUT("/me/update", authHandler.UpdateProfile)
	authed.PUT("/password/update", authHandler.UpdatePassword)

	// admin
	admin := authed.Group("/admin")
	admin.Use(middlewares.RequireRoles(user.RoleAdmin))
	admin.GET("/users", adminHandler.ListUsers)
	admin.GET("/user/:id", adminHandler.GetUser)
	admin.PUT("/user/:id", adminHandler.UpdateUser)
	admin.DELETE("/user/:id", adminHandler.DeleteUser)

	return r
}

// MetricsHandler exposes the default registry; *observability.Prom registers there.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
