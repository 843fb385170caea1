// Package server is the AI Optimizer web frontend: server-rendered pages gated
// on the backend session.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aioptimizer/frontend/internal/auth"
	"github.com/aioptimizer/frontend/internal/config"
	"github.com/aioptimizer/frontend/internal/guard"
	"github.com/aioptimizer/frontend/internal/models"
	"github.com/aioptimizer/frontend/internal/usercache"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Server represents the HTTP server
type Server struct {
	router     *gin.Engine
	config     *config.Config
	logger     zerolog.Logger
	cache      usercache.Cache
	redis      *redis.Client
	states     *auth.StateSigner
	policy     guard.Policy
	httpClient *http.Client
	version    string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	states, err := auth.NewStateSigner(cfg.Session.StateSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oauth state: %w", err)
	}

	if err := registerValidators(); err != nil {
		return nil, err
	}

	server := &Server{
		config:     cfg,
		logger:     zlog,
		states:     states,
		policy:     guard.DefaultPolicy,
		httpClient: &http.Client{Timeout: cfg.Backend.Timeout},
		version:    version,
	}

	server.initCache()

	if err := server.setupRouter(); err != nil {
		return nil, err
	}

	return server, nil
}

// initCache picks Redis when configured, falling back to an in-process cache
func (s *Server) initCache() {
	if s.config.Cache.RedisAddress == "" {
		s.cache = usercache.NewMemoryCache(s.config.Cache.TTL)
		s.logger.Info().Msg("Using in-memory user cache")
		return
	}

	s.redis = redis.NewClient(&redis.Options{Addr: s.config.Cache.RedisAddress})
	s.cache = usercache.NewRedisCache(s.redis, s.config.Cache.TTL)
	s.logger.Info().Str("address", s.config.Cache.RedisAddress).Msg("Using Redis user cache")
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() error {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	s.router.SetHTMLTemplate(tmpl)

	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())

	s.router.GET("/health", s.healthCheck)

	// Every page gets a per-request backend client and session store
	pages := s.router.Group("")
	pages.Use(s.sessionMiddleware())
	{
		pages.GET("/", s.homePage)

		pages.GET("/login", s.loginPage)
		pages.POST("/login", s.login)
		pages.GET("/register", s.registerPage)
		pages.POST("/register", s.register)
		pages.GET("/verify", s.verifyPage)
		pages.POST("/verify", s.verify)
		pages.POST("/verify/resend", s.resendVerification)
		pages.GET("/forgot-password", s.forgotPasswordPage)
		pages.POST("/forgot-password", s.forgotPassword)
		pages.GET("/reset-password", s.resetPasswordPage)
		pages.POST("/reset-password", s.resetPassword)
		pages.GET("/auth/google", s.googleLogin)
		pages.GET("/auth/callback", s.googleCallback)
		pages.POST("/logout", s.logout)

		api := pages.Group("/api")
		api.Use(cors.New(cors.Config{
			AllowOrigins:     s.config.Server.CORSOrigins,
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type"},
			ExposeHeaders:    []string{"Content-Length", requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
		{
			api.GET("/session", s.sessionInfo)
			api.OPTIONS("/session", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		}

		protected := pages.Group("")
		protected.Use(s.requireSession(""))
		{
			protected.GET("/dashboard", s.dashboardPage)
			protected.GET("/optimize/:mode", s.optimizePage)
			protected.POST("/optimize/:mode", s.optimize)
			protected.GET("/history", s.historyPage)
			protected.GET("/history/:id/report", s.downloadReport)
			protected.GET("/profile", s.profilePage)
			protected.POST("/profile", s.updateProfile)
		}

		admin := pages.Group("/admin")
		admin.Use(s.requireSession(models.RoleAdmin))
		{
			admin.GET("", s.adminPage)
			admin.POST("/users/:id/promote", s.promoteUser)
			admin.POST("/users/:id/demote", s.demoteUser)
			admin.POST("/users/:id/delete", s.deleteUser)
		}
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/")
	})

	return nil
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("request_id", requestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	status := gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "aiopt-frontend",
		"version":   s.version,
		"cache":     "memory",
	}

	if s.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Redis ping failed")
			status["cache"] = "degraded"
		} else {
			status["cache"] = "redis"
		}
	}

	c.JSON(http.StatusOK, status)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	port := ":" + s.config.Server.Port

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              port,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.config.Backend.Timeout + 30*time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("port", port).Str("backend", s.config.Backend.URL).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		s.logger.Error().Err(err).Msg("HTTP server error")
		return err
	case <-sigChan:
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	s.logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing Redis client")
		}
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
