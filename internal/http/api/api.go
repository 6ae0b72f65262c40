// Package api wires the HTTP surface: route registration, the JWT auth
// gate, and per-client rate limiting on the credential endpoints.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/miky-rola/signals-backend/internal/cache"
	"github.com/miky-rola/signals-backend/internal/config"
	"github.com/miky-rola/signals-backend/internal/http/api/handlers"
	"github.com/miky-rola/signals-backend/internal/mail"
	"github.com/miky-rola/signals-backend/internal/models"
	"github.com/miky-rola/signals-backend/internal/ratelimit"
	"github.com/miky-rola/signals-backend/internal/security"
)

// authRateLimit caps attempts per client per window on the credential
// endpoints (login, forgot-password, reset-password).
const authRateLimit = 10

// Server aggregates the dependencies shared by the route handlers.
type Server struct {
	db      *gorm.DB
	store   cache.Store
	mailer  mail.Sender
	limiter ratelimit.Limiter
	jwtCfg  config.JWTConfig
}

// NewServer constructs a Server.
func NewServer(db *gorm.DB, store cache.Store, mailer mail.Sender, limiter ratelimit.Limiter, jwtCfg config.JWTConfig) *Server {
	return &Server{db: db, store: store, mailer: mailer, limiter: limiter, jwtCfg: jwtCfg}
}

// RegisterRoutes attaches every route to the engine.
func (s *Server) RegisterRoutes(engine *gin.Engine) {
	health := handlers.NewHealthHandler(s.db)
	auth := handlers.NewAuthHandler(s.db, s.store, s.mailer, s.jwtCfg)
	users := handlers.NewUserHandler(s.db)
	profiles := handlers.NewProfileHandler(s.db)
	marketData := handlers.NewMarketDataHandler(s.db)
	signals := handlers.NewSignalHandler(s.db, s.store)
	interactions := handlers.NewInteractionHandler(s.db)

	engine.GET("/healthz", health.Healthz)

	public := engine.Group("/api/auth")
	{
		public.POST("/signup", auth.Signup)
		public.POST("/verify-email", auth.VerifyEmail)
		public.POST("/login", s.rateLimitMiddleware(), auth.Login)
		public.POST("/refresh-token", auth.Refresh)
		public.POST("/logout", auth.Logout)
		public.POST("/forget-password", s.rateLimitMiddleware(), auth.ForgotPassword)
		public.POST("/reset-password", s.rateLimitMiddleware(), auth.ResetPassword)
	}

	private := engine.Group("/api", s.authMiddleware())
	{
		private.POST("/auth/change-password", auth.ChangePassword)

		private.GET("/users", users.List)
		private.GET("/users/me", users.Me)
		private.GET("/users/:id", users.Get)
		private.PATCH("/users/:id", users.Update)
		private.DELETE("/users/:id", users.Delete)

		private.POST("/profiles", profiles.Create)
		private.GET("/profiles", profiles.List)
		private.GET("/profiles/:id", profiles.Get)
		private.PATCH("/profiles/:id", profiles.Update)
		private.DELETE("/profiles/:id", profiles.Delete)

		private.POST("/marketdata", marketData.Create)
		private.GET("/marketdata", marketData.List)
		private.GET("/marketdata/:id", marketData.Get)
		private.PATCH("/marketdata/:id", marketData.Update)
		private.DELETE("/marketdata/:id", marketData.Delete)

		private.POST("/signals", signals.Create)
		private.GET("/signals", signals.List)
		private.GET("/signals/:id", signals.Get)
		private.PATCH("/signals/:id", signals.Update)
		private.DELETE("/signals/:id", signals.Delete)
		private.GET("/signals/:id/performance", signals.Performance)
		private.DELETE("/cache/signals", signals.FlushCache)

		private.POST("/userinteractions", interactions.Create)
		private.GET("/userinteractions", interactions.List)
		private.GET("/userinteractions/user/:id", interactions.ListByUser)
		private.GET("/userinteractions/:id", interactions.Get)
		private.PATCH("/userinteractions/:id", interactions.Update)
		private.DELETE("/userinteractions/:id", interactions.Delete)
	}
}

// authMiddleware validates the bearer access token and loads its user onto
// the request context. Disabled accounts are rejected even with a valid
// token.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}

		claims, errParse := security.ParseToken(s.jwtCfg.Secret, strings.TrimSpace(token), security.TokenTypeAccess)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid or expired"})
			return
		}

		var user models.User
		errFind := s.db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid or expired"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
			return
		}
		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "User account is disabled."})
			return
		}

		handlers.SetCurrentUser(c, user)
		c.Next()
	}
}

// rateLimitMiddleware throttles a client IP on the endpoint it guards.
// Limiter errors fail open; throttling is best effort.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		key := c.FullPath() + "|" + c.ClientIP()
		res, errAllow := s.limiter.Allow(c.Request.Context(), key, authRateLimit, time.Now())
		if errAllow != nil {
			log.WithError(errAllow).Warn("rate limit check failed")
			c.Next()
			return
		}
		if !res.Allowed {
			retry := int(time.Until(res.Reset).Seconds() + 1)
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Request was throttled."})
			return
		}
		c.Next()
	}
}
