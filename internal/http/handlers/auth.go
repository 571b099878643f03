package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/storefront/internal/apperr"
	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/geocoder89/storefront/internal/notifications"
	"github.com/gin-gonic/gin"
)

const (
	MsgMissingCredentials = "Please enter email & password"
	MsgInvalidCredentials = "Invalid Email or Password"
	MsgDuplicateEmail     = "Duplicate email entered"
	MsgResetInvalid       = "Password reset token is invalid or expired"
	MsgPasswordMismatch   = "Passwords do not match"
	MsgOldPasswordWrong   = "Old password is incorrect"
	MsgNoUserWithEmail    = "User not found with this email"

	DefaultCookieName      = "token"
	DefaultResetPathPrefix = "/api/v1/password/reset/"
)

// UserStore is the slice of the credential store the auth flows need.
type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByResetTokenHash(ctx context.Context, digest string, now time.Time) (user.User, error)
	UpdateProfile(ctx context.Context, id, name, email string) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	ConsumeReset(ctx context.Context, digest string, now time.Time, passwordHash string) (user.User, error)
	SaveReset(ctx context.Context, id string, digest *string, expiresAt *time.Time) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// AuthMetrics is satisfied by *observability.Prom.
type AuthMetrics interface {
	AuthEvent(event, result string)
}

type AuthOptions struct {
	CookieName string
	// CookieTTL caps the cookie lifetime; zero means the token's own expiry.
	CookieTTL       time.Duration
	CookieSecure    bool
	ResetTTL        time.Duration
	PublicBaseURL   string
	ResetPathPrefix string
	AppName         string
	StoreTimeout    time.Duration
}

type AuthHandler struct {
	users   UserStore
	hasher  PasswordHasher
	tokens  TokenIssuer
	mailer  notifications.Mailer
	metrics AuthMetrics
	opts    AuthOptions
	now     func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthHandler(
	users UserStore,
	hasher PasswordHasher,
	tokens TokenIssuer,
	mailer notifications.Mailer,
	metrics AuthMetrics,
	opts AuthOptions,
) *AuthHandler {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 30 * time.Minute
	}
	if opts.ResetPathPrefix == "" {
		opts.ResetPathPrefix = DefaultResetPathPrefix
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 3 * time.Second
	}

	return &AuthHandler{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		mailer:  mailer,
		metrics: metrics,
		opts:    opts,
		now:     time.Now,
	}
}

// WithClock swaps the time source used for reset expiry and cookies.
func (h *AuthHandler) WithClock(now func() time.Time) *AuthHandler {
	h.now = now
	return h
}

func (h *AuthHandler) storeCtx(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), h.opts.StoreTimeout)
}

func (h *AuthHandler) event(event, result string) {
	if h.metrics != nil {
		h.metrics.AuthEvent(event, result)
	}
}

// Register: POST /register
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest
	if !bindJSON(ctx, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if !validateRequest(ctx, req) {
		h.event("register", "invalid")
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		fail(ctx, apperr.Wrap(apperr.KindServer, err, "could not hash password"))
		return
	}

	cctx, cancel := h.storeCtx(ctx)
	defer cancel()

	created, err := h.users.Create(cctx, user.NewFromRegister(req, hash))
	if errors.Is(err, user.ErrEmailTaken) {
		h.event("register", "duplicate")
		fail(ctx, apperr.Wrap(apperr.KindValidation, err, MsgDuplicateEmail))
		return
	}
	if err != nil {
		fail(ctx, err)
		return
	}

	h.event("register", "ok")
	h.sendToken(ctx, http.StatusCreated, created)
}

// Login: POST /login
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest
	if !bindJSON(ctx, &req) {
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		fail(ctx, apperr.New(apperr.KindBadRequest, MsgMissingCredentials))
		return
	}

	cctx, cancel := h.storeCtx(ctx)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, email)
	if errors.Is(err, user.ErrNotFound) {
		// burn a comparison so unknown emails cost the same as wrong passwords
		_ = h.hasher.Compare(h.placeholderHash(), req.Password)
		h.event("login", "rejected")
		fail(ctx, apperr.New(apperr.KindInvalidCredentials, MsgInvalidCredentials))
		return
	}
	if err != nil {
		fail(ctx, err)
		return
	}

	if err := h.hasher.Compare(u.PasswordHash, req.Password); err != nil {
		h.event("login", "rejected")
		fail(ctx, apperr.Wrap(apperr.KindInvalidCredentials, err, MsgInvalidCredentials))
		return
	}

	h.event("login", "ok")
	h.sendToken(ctx, http.StatusOK, u)
}

// Logout: GET /logout
func (h *AuthHandler) Logout(ctx *gin.Context) {
	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.event("logout", "ok")
	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

// ForgotPassword: POST /password/forgot
func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req user.ForgotPasswordRequest
	if !bindJSON(ctx, &req) {
		return
	}

	email := strings.TrimSpace(req.Email)

	cctx, cancel := h.storeCtx(ctx)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, email)
	if errors.Is(err, user.ErrNotFound) {
		h.event("forgot", "unknown_email")
		fail(ctx, apperr.Wrap(apperr.KindNotFound, err, MsgNoUserWithEmail))
		return
	}
	if err != nil {
		fail(ctx, err)
		return
	}

	plain, digest, err := auth.NewResetToken()
	if err != nil {
		fail(ctx, apperr.Wrap(apperr.KindServer, err, "could not create reset token"))
		return
	}

	expiresAt := h.now().UTC().Add(h.opts.ResetTTL)
	if err := h.users.SaveReset(cctx, u.ID, &digest, &expiresAt); err != nil {
		fail(ctx, err)
		return
	}

	msg := notifications.PasswordResetMessage(h.opts.AppName, u.Email, h.resetURL(ctx, plain))

	if err := h.mailer.Send(ctx.Request.Context(), msg); err != nil {
		h.rollbackReset(ctx, u.ID)
		h.event("forgot", "mail_failed")
		fail(ctx, apperr.Wrap(apperr.KindServer, err, err.Error()))
		return
	}

	h.event("forgot", "ok")
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Recovery email sent to " + u.Email,
	})
}

// rollbackReset clears a just-issued reset token whose email never left.
// It must run even when the client has gone away.
func (h *AuthHandler) rollbackReset(ctx *gin.Context, userID string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx.Request.Context()), h.opts.StoreTimeout)
	defer cancel()

	if err := h.users.SaveReset(rctx, userID, nil, nil); err != nil {
		slog.Default().ErrorContext(rctx, "reset token rollback failed",
			append(requestLog(ctx), "user_id", userID, "err", err)...)
	}
}

// ResetPassword: PUT /password/reset/:token
func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req user.ResetPasswordRequest
	if !bindJSON(ctx, &req) {
		return
	}

	cctx, cancel := h.storeCtx(ctx)
	defer cancel()

	digest := auth.HashResetToken(ctx.Param("token"))

	_, err := h.users.GetByResetTokenHash(cctx, digest, h.now().UTC())
	if errors.Is(err, user.ErrNotFound) {
		h.event("reset", "invalid_token")
		fail(ctx, apperr.Wrap(apperr.KindInvalidOrExpiredToken, err, MsgResetInvalid))
		return
	}
	if err != nil {
		fail(ctx, err)
		return
	}

	if req.Password != req.ConfirmPassword {
		h.event("reset", "mismatch")
		fail(ctx, apperr.New(apperr.KindPasswordMismatch, MsgPasswordMismatch))
		return
	}

	if !validateRequest(ctx, req) {
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		fail(ctx, apperr.Wrap(apperr.KindServer, err, "could not hash password"))
		return
	}

	// the token is spent only if it is still pending when the write lands
	u, err := h.users.ConsumeReset(cctx, digest, h.now().UTC(), hash)
	if errors.Is(err, user.ErrNotFound) {
		h.event("reset", "invalid_token")
		fail(ctx, apperr.Wrap(apperr.KindInvalidOrExpiredToken, err, MsgResetInvalid))
		return
	}
	if err != nil {
		fail(ctx, err)
		return
	}

	h.event("reset", "ok")
	h.sendToken(ctx, http.StatusOK, u)
}

// Me: GET /me
func (h *AuthHandler) Me(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)
	if !ok {
		fail(ctx, apperr.New(apperr.KindUnauthenticated, middlewares.MsgLoginRequired))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

// UpdateProfile: PUT /me/update. Only name and email are writable here.
func (h *AuthHandler) UpdateProfile(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)
	if !ok {
		fail(ctx, apperr.New(apperr.KindUnauthenticated, middlewares.MsgLoginRequired))
		return
	}

	var req user.UpdateProfileRequest
	if !bindJSON(ctx, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if !validateRequest(ctx, req) {
		return
	}

	cctx, cancel := h.storeCtx(ctx)
	defer cancel()

	if err := h.users.UpdateProfile(cctx, u.ID, req.Name, req.Email); err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			fail(ctx, apperr.Wrap(apperr.KindValidation, err, MsgDuplicateEmail))
		case errors.Is(err, user.ErrNotFound):
			fail(ctx, apperr.Wrap(apperr.KindUnauthenticated, err, middlewares.MsgLoginRequired))
		default:
			fail(ctx, err)
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// UpdatePassword: PUT /password/update
func (h *AuthHandler) UpdatePassword(ctx *gin.Context) {
	u, ok := middlewares.CurrentUser(ctx)
	if !ok {
		fail(ctx, apperr.New(apperr.KindUnauthenticated, middlewares.MsgLoginRequired))
		return
	}

	var req user.UpdatePasswordRequest
	if !bindJSON(ctx, &req) {
		return
	}

	if err := h.hasher.Compare(u.PasswordHash, req.OldPassword); err != nil {
		h.event("password_update", "rejected")
		fail(ctx, apperr.Wrap(apperr.KindBadRequest, err, MsgOldPasswordWrong))
		return
	}

	if !validateRequest(ctx, req) {
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		fail(ctx, apperr.Wrap(apperr.KindServer, err, "could not hash password"))
		return
	}

	cctx, cancel := h.storeCtx(ctx)
	defer cancel()

	if err := h.users.SetPassword(cctx, u.ID, hash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			fail(ctx, apperr.Wrap(apperr.KindUnauthenticated, err, middlewares.MsgLoginRequired))
			return
		}
		fail(ctx, err)
		return
	}
	u.PasswordHash = hash

	h.event("password_update", "ok")
	h.sendToken(ctx, http.StatusOK, u)
}

// sendToken issues a session token, sets it as an httpOnly cookie that
// expires with the token, and writes {success, token, user}.
func (h *AuthHandler) sendToken(ctx *gin.Context, status int, u user.User) {
	token, expiresAt, err := h.tokens.Issue(u.ID)
	if err != nil {
		fail(ctx, apperr.Wrap(apperr.KindServer, err, "could not issue session token"))
		return
	}

	now := h.now()
	if h.opts.CookieTTL > 0 {
		if capAt := now.Add(h.opts.CookieTTL); capAt.Before(expiresAt) {
			expiresAt = capAt
		}
	}

	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt.UTC(),
		MaxAge:   int(expiresAt.Sub(now).Seconds()),
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	ctx.JSON(status, gin.H{"success": true, "token": token, "user": u})
}

func (h *AuthHandler) resetURL(ctx *gin.Context, plain string) string {
	base := strings.TrimRight(h.opts.PublicBaseURL, "/")

	if base == "" {
		scheme := "http"
		if ctx.Request.TLS != nil {
			scheme = "https"
		}
		if proto := ctx.GetHeader("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + ctx.Request.Host
	}

	return base + h.opts.ResetPathPrefix + plain
}

func (h *AuthHandler) placeholderHash() string {
	h.dummyOnce.Do(func() {
		h.dummyHash, _ = h.hasher.Hash("placeholder-password")
	})
	return h.dummyHash
}

func (h *AuthHandler) CookieName() string {
	return h.opts.CookieName
}
