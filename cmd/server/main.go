package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/agenthub/backend/internal/auth"
	"github.com/agenthub/backend/internal/cache"
	"github.com/agenthub/backend/internal/config"
	"github.com/agenthub/backend/internal/database"
	"github.com/agenthub/backend/internal/email"
	"github.com/agenthub/backend/internal/handlers"
	"github.com/agenthub/backend/internal/logger"
	"github.com/agenthub/backend/internal/metrics"
	"github.com/agenthub/backend/internal/middleware"
	"github.com/agenthub/backend/internal/repository"
	"github.com/agenthub/backend/internal/telemetry"
	"github.com/agenthub/backend/internal/tracking"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logger.Initialize(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("Agent Hub backend starting")

	if err := database.Initialize(cfg.Database.Driver, cfg.Database.URL); err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis is optional: without it rating-stats caching and distributed
	// rate limiting degrade gracefully
	redisClient, err := cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
	if err != nil {
		logger.Log.Warn("Redis unavailable, continuing without cache", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	metrics.Initialize()

	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  "agenthub-backend",
		Environment:  os.Getenv("ENVIRONMENT"),
		OTLPEndpoint: cfg.Telemetry.Endpoint,
		Enabled:      cfg.Telemetry.Enabled,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Log.Warn("Failed to initialize tracing", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	var emailService *email.EmailService
	if cfg.Email.Enabled {
		emailService, err = email.NewEmailService(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName)
		if err != nil {
			logger.Log.Warn("Failed to initialize email service, notifications disabled", zap.Error(err))
			emailService = nil
		}
	}

	authService := auth.NewService(
		[]byte(cfg.Auth.JWTSecret),
		emailService,
		cfg.Auth.OTPExpireMinutes,
		cfg.Auth.TokenExpireHours,
		cfg.Auth.DevExposeOTP,
	)
	trackingService := tracking.NewService(database.DB)
	userRepo := repository.NewUserRepository(database.DB)

	h := handlers.NewHandlers(authService, trackingService, userRepo)
	if emailService != nil {
		h.SetEmailService(emailService)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	if cfg.Telemetry.Enabled {
		r.Use(otelgin.Middleware("agenthub-backend"))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := database.Health(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "agenthub-backend",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := middleware.RequireAuth(authService)
	optionalAuth := middleware.OptionalAuth(authService)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authGroup.Use(middleware.RedisRateLimitMiddleware("auth", 20, time.Minute))
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
			authGroup.POST("/verify", h.Verify)
			authGroup.POST("/refresh", requireAuth, h.RefreshToken)
			authGroup.POST("/change-password", requireAuth, h.ChangePassword)
			authGroup.GET("/me", requireAuth, h.Me)
		}

		agents := api.Group("/agents")
		{
			agents.GET("", h.ListAgents)
			agents.GET("/categories", h.ListCategories)
			agents.GET("/mine", requireAuth, h.MySubmissions)
			agents.GET("/:id", optionalAuth, h.GetAgent)
			agents.POST("", requireAuth, h.CreateAgent)
			agents.PUT("/:id", requireAuth, h.UpdateAgent)

			// Engagement
			agents.POST("/:id/view", requireAuth, h.RecordAgentView)
			agents.POST("/:id/click", requireAuth, h.RecordAgentClick)
			agents.POST("/:id/session", requireAuth, h.RecordAgentSession)
			agents.POST("/:id/rating", requireAuth, h.RateAgent)
			agents.GET("/:id/rating-stats", h.GetAgentRatingStats)

			// Reviews
			agents.GET("/:id/reviews", h.ListAgentReviews)
			agents.PUT("/:id/reviews", requireAuth, h.SubmitAgentReview)
			agents.DELETE("/:id/reviews", requireAuth, h.DeleteAgentReview)
		}

		api.POST("/reviews/:review_id/helpful", requireAuth, h.MarkReviewHelpful)

		api.GET("/users/:id", h.GetUser)

		admin := api.Group("/admin")
		admin.Use(requireAuth, middleware.RequireAdmin())
		{
			admin.GET("/agents/pending", h.ListPendingAgents)
			admin.POST("/agents/:id/approve", h.ApproveAgent)
			admin.POST("/agents/:id/reject", h.RejectAgent)

			admin.GET("/users", h.ListUsers)
			admin.GET("/users/pending", h.ListPendingUsers)
			admin.POST("/users/:id/approve", h.ApproveUser)
			admin.POST("/users/:id/deactivate", h.DeactivateUser)
			admin.DELETE("/users/:id", h.RejectUser)
			admin.POST("/users/:id/make-admin", h.MakeAdmin)

			admin.GET("/stats", h.AdminStats)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Log.Info("Agent Hub backend listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}
