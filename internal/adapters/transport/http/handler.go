package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/http/middleware"
	appsvc "github.com/Miraines/MoonyAndStarry/credential-service/internal/app/auth/service"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/dto"
	authErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/config"
	lg "github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/log"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/ratelimit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc    appsvc.Service
	cfg    *config.Config
	log    *zap.Logger
	health Pinger
}

// NewHandler wires the service into gin handlers. health may be nil.
func NewHandler(svc appsvc.Service, cfg *config.Config, logger *zap.Logger, health Pinger) *Handler {
	return &Handler{svc: svc, cfg: cfg, log: logger, health: health}
}

// NewRouter builds the engine with recovery, request logging, rate limiting
// and CORS in front of the routes. The limiter's sweeper stops with ctx.
func NewRouter(ctx context.Context, h *Handler) *gin.Engine {
	limiter := ratelimit.New(ctx, h.cfg.RateLimitRPS, h.cfg.RateLimitBurst, ratelimit.DefaultCacheSize, time.Hour)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(h.log))
	router.Use(middleware.RateLimitPerIP(limiter))

	if len(h.cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     h.cfg.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: h.cfg.AllowCredentials,
			MaxAge:           12 * time.Hour,
		}))
	}

	h.Register(router)
	return router
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/signup", h.signUp)
	r.POST("/signin", h.signIn)
	r.POST("/refresh-token", h.refresh)
	r.GET("/health", h.healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (h *Handler) signUp(c *gin.Context) {
	var body dto.SignUpDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("/signup", lg.Email(body.Email))

	account, err := h.svc.SignUp(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        account.ID,
		"email":     account.Email,
		"name":      account.Name,
		"createdAt": account.CreatedAt,
	})
}

func (h *Handler) signIn(c *gin.Context) {
	var body dto.SignInDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("/signin", lg.Email(body.Email))

	pair, err := h.svc.SignIn(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if h.cfg.CookieDomain != "" {
		h.setCookie(c, accessCookie, pair.AccessToken, pair.AccessTTL, http.SameSiteLaxMode)
		h.setCookie(c, refreshCookie, pair.RefreshToken, pair.RefreshTTL, http.SameSiteStrictMode)
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    int(pair.AccessTTL.Seconds()),
		"userId":       pair.AccountID,
	})
}

// refresh takes the token from the JSON body, falling back to the
// refresh_token cookie when the body is empty or names no token.
func (h *Handler) refresh(c *gin.Context) {
	var body dto.RefreshDTO
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Token == "" {
		if v, err := c.Cookie(refreshCookie); err == nil {
			body.Token = v
		}
	}
	h.log.Info("/refresh-token")

	at, err := h.svc.Refresh(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if h.cfg.CookieDomain != "" {
		h.setCookie(c, accessCookie, at.Token, at.TTL, http.SameSiteLaxMode)
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken": at.Token,
		"expiresIn":   int(at.TTL.Seconds()),
	})
}

func (h *Handler) healthCheck(c *gin.Context) {
	if h.health != nil {
		if err := h.health.Ping(c.Request.Context()); err != nil {
			h.log.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "time": time.Now().Unix()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
}

func (h *Handler) setCookie(c *gin.Context, name, value string, ttl time.Duration, site http.SameSite) {
	c.SetSameSite(site)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", h.cfg.CookieDomain, true, true)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case authErrors.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case authErrors.IsAlreadyExists(err):
		c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
	case authErrors.IsInvalidCredentials(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case authErrors.IsInvalidToken(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	case authErrors.IsStoreUnavailable(err):
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
