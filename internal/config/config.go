package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string
	// Store selects the credential store: "postgres" or "memory".
	Store string

	JWTSecret         string
	JWTExpiresIn      time.Duration
	CookieExpiresDays int
	ResetTokenTTL     time.Duration
	// PublicBaseURL overrides the scheme://host used in reset links.
	PublicBaseURL string
	CookieSecure  bool

	CORSAllowedOrigins []string

	MailTransport  string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SMTPFromName   string
	SMTPFromEmail  string
	MailTimeout    time.Duration
	AppDisplayName string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitRequests int
	RateLimitWindow   time.Duration

	OTELEnabled     bool
	OTELEndpoint    string
	OTELSampleRatio float64

	AdminEmail    string
	AdminPassword string
	AdminName     string
	AdminRole     string

	SweepInterval    time.Duration
	WorkerHealthPort int
}

// Load reads configuration from the environment. A .env file (ENV_FILE,
// default ".env") is applied first when present; real env vars win.
func Load() Config {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read env file", "file", envFile, "err", err)
	}

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),
		Store: getEnv("STORE", "postgres"),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTExpiresIn:      getEnvDuration("JWT_EXPIRES_TIME", 7*24*time.Hour),
		CookieExpiresDays: getEnvInt("COOKIE_EXPIRES_DAYS", 7),
		ResetTokenTTL:     getEnvDuration("RESET_TOKEN_TTL", 30*time.Minute),
		PublicBaseURL:     os.Getenv("PUBLIC_BASE_URL"),
		CookieSecure:      getEnv("COOKIE_SECURE", "false") == "true",

		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		MailTransport:  getEnv("MAIL_TRANSPORT", "log"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       getEnvInt("SMTP_PORT", 587),
		SMTPUser:       os.Getenv("SMTP_USER"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		SMTPFromName:   getEnv("SMTP_FROM_NAME", "Storefront"),
		SMTPFromEmail:  getEnv("SMTP_FROM_EMAIL", "noreply@storefront.local"),
		MailTimeout:    getEnvDuration("MAIL_TIMEOUT", 5*time.Second),
		AppDisplayName: getEnv("APP_DISPLAY_NAME", "Storefront"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		OTELEnabled:     getEnv("OTEL_ENABLED", "false") == "true",
		OTELEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTELSampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),
		AdminRole:     getEnv("ADMIN_ROLE", "admin"),

		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", time.Minute),
		WorkerHealthPort: getEnvInt("WORKER_HEALTH_PORT", 8081),
	}
}

// Validate reports configuration that must be present at process start.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTExpiresIn <= 0 {
		return errors.New("JWT_EXPIRES_TIME must be positive")
	}
	if c.CookieExpiresDays <= 0 {
		return errors.New("COOKIE_EXPIRES_DAYS must be positive")
	}
	if c.ResetTokenTTL <= 0 {
		return errors.New("RESET_TOKEN_TTL must be positive")
	}

	switch c.Store {
	case "postgres":
		if c.DBURL == "" {
			return errors.New("database url is required for the postgres store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}

	switch c.MailTransport {
	case "smtp":
		if c.SMTPHost == "" {
			return errors.New("SMTP_HOST is required when MAIL_TRANSPORT=smtp")
		}
	case "log":
	default:
		return fmt.Errorf("unknown MAIL_TRANSPORT %q", c.MailTransport)
	}

	if c.Env == "prod" {
		if c.MailTransport == "log" {
			return errors.New("MAIL_TRANSPORT=log is not allowed in prod")
		}
		// without it reset links are built from the request Host header
		if c.PublicBaseURL == "" {
			return errors.New("PUBLIC_BASE_URL is required in prod")
		}
	}

	return nil
}

// CookieTTL is how long the session cookie lives in the browser.
func (c Config) CookieTTL() time.Duration {
	return time.Duration(c.CookieExpiresDays) * 24 * time.Hour
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "storefront")
	pass := getEnv("DB_PASSWORD", "storefront")
	name := getEnv("DB_NAME", "storefront")
	ssl := getEnv("DB_SSLMODE", "disable")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + name,
		RawQuery: url.Values{"sslmode": {ssl}}.Encode(),
	}
	return u.String()
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func splitList(v string) []string {
	var out []string

	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer in env, using default", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)

		if err != nil {
			slog.Warn("invalid float in env, using default", "key", key, "value", v)
			return fallback
		}

		return f
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil {
			slog.Warn("invalid duration in env, using default", "key", key, "value", v)
			return fallback
		}

		return d
	}
	return fallback
}
