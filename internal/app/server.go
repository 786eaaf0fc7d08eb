// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"rankpilot-service/internal/config"
	"rankpilot-service/internal/db"
	"rankpilot-service/internal/domain/tier"
	"rankpilot-service/internal/events"
	auditHandler "rankpilot-service/internal/handlers/audit"
	authHandler "rankpilot-service/internal/handlers/auth"
	entitlementHandler "rankpilot-service/internal/handlers/entitlement"
	eventsHandler "rankpilot-service/internal/handlers/events"
	subscriptionHandler "rankpilot-service/internal/handlers/subscription"
	webhookHandler "rankpilot-service/internal/handlers/webhook"
	"rankpilot-service/internal/middleware"
	"rankpilot-service/internal/pkg/idempotency"
	"rankpilot-service/internal/pkg/jwt"
	"rankpilot-service/internal/repository/postgres"
	auditUsecase "rankpilot-service/internal/service/audit"
	authUsecase "rankpilot-service/internal/service/auth"
	entitlementUsecase "rankpilot-service/internal/service/entitlement"
	subscriptionUsecase "rankpilot-service/internal/service/subscription"
	usageUsecase "rankpilot-service/internal/service/usage"
	webhookUsecase "rankpilot-service/internal/service/webhook"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg         config.AppConfig
	engine      *gin.Engine
	logger      *zap.Logger
	authService *authUsecase.AuthService
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	// ----- JWT Manager -----
	jwtManager, err := jwt.NewManager(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to build JWT manager: %w", err)
	}

	// ----- Tier Catalog -----
	catalog := tier.NewCatalog()

	// ----- Repositories -----
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	usageRepo := postgres.NewUsageRepository(pool)
	adminRepo := postgres.NewAdminRepository(pool)

	// ----- Events Hub -----
	hub := events.NewHub(logger)
	go hub.Run(ctx)

	// ----- Services -----
	subscriptionService := subscriptionUsecase.NewSubscriptionService(subscriptionRepo, catalog, hub, logger)
	usageService := usageUsecase.NewUsageService(usageRepo, catalog, s.cfg.UsagePeriod, logger)
	entitlementService := entitlementUsecase.NewEntitlementService(subscriptionService, usageService, catalog, logger)
	webhookService := webhookUsecase.NewWebhookService(
		webhookUsecase.Config{
			SigningSecret: s.cfg.WebhookSigningSecret,
			Tolerance:     s.cfg.WebhookTolerance,
		},
		subscriptionService,
		idempotency.NewLog(redisClient, s.cfg.IdempotencyRetention),
		catalog,
		logger,
	)
	auditService := auditUsecase.NewAuditService(subscriptionRepo, usageRepo, catalog, logger)
	authService := authUsecase.NewAuthService(adminRepo, jwtManager, logger)
	s.authService = authService

	// ----- Initialize Super Admin -----
	if err := s.initializeSuperAdmin(); err != nil {
		logger.Error("failed to initialize super admin", zap.Error(err))
		// Don't fail startup, just log the error
	}

	// ----- Handlers -----
	authMiddleware := middleware.NewAuthMiddleware(authService)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	handlers := &Handlers{
		AuthHandler:         authHandler.NewAuthHandler(authService),
		WebhookHandler:      webhookHandler.NewWebhookHandler(webhookService, logger),
		EntitlementHandler:  entitlementHandler.NewEntitlementHandler(entitlementService, subscriptionService, usageService, catalog),
		SubscriptionHandler: subscriptionHandler.NewSubscriptionHandler(subscriptionService, logger),
		AuditHandler:        auditHandler.NewAuditHandler(auditService),
		WSHandler:           eventsHandler.NewWSHandler(hub, logger),
		AuthMiddleware:      authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}

// initializeSuperAdmin creates the super admin if it doesn't exist
func (s *Server) initializeSuperAdmin() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	email := os.Getenv("SUPER_ADMIN_EMAIL")
	password := os.Getenv("SUPER_ADMIN_PASSWORD")
	fullName := os.Getenv("SUPER_ADMIN_NAME")

	if email == "" || password == "" {
		s.logger.Warn("super admin credentials not set, skipping bootstrap")
		return nil
	}
	if fullName == "" {
		fullName = "Super Administrator"
	}
	if len(password) < 8 {
		return fmt.Errorf("super admin password must be at least 8 characters")
	}

	if err := s.authService.EnsureSuperAdminExists(ctx, email, password, fullName); err != nil {
		return fmt.Errorf("failed to ensure super admin exists: %w", err)
	}
	return nil
}
