package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"carbonflow/internal/config"
	"carbonflow/internal/database"
	"carbonflow/internal/handlers"
	"carbonflow/internal/logger"
	"carbonflow/internal/middleware"
	"carbonflow/internal/models"
	"carbonflow/internal/places"
	"carbonflow/internal/services"
	"carbonflow/internal/validator"
)

// @title           Carbonflow API
// @version         1.0
// @description     Carbonflow manages solar-asset carbon-credit proposals: agents draft proposals for clients, clients sign them, and the platform tracks the resulting revenue split.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Register custom request validators
	validator.Register()

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	portfolioService := services.NewPortfolioService(db)
	notificationService := services.NewNotificationService(db)
	clientService := services.NewClientService(db, portfolioService)
	proposalService := services.NewProposalService(db, portfolioService, notificationService)
	invitationService := services.NewInvitationService(db)
	settingsService := services.NewSettingsService(db)
	placesClient := places.NewClient(appConfig.GoogleMapsAPIKey)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	clientHandler := handlers.NewClientHandler(clientService, portfolioService, auditService)
	proposalHandler := handlers.NewProposalHandler(proposalService, auditService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService, clientService)
	invitationHandler := handlers.NewInvitationHandler(invitationService, auditService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	placesHandler := handlers.NewPlacesHandler(placesClient)
	settingsHandler := handlers.NewSettingsHandler(settingsService, auditService)

	// Background maintenance: nightly share repair, hourly review-later sweep
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 3 * * *", func() {
		report, err := portfolioService.RepairAllClientShares()
		if err != nil {
			log.Errorw("share repair failed", "error", err)
			return
		}
		log.Infow("share repair complete", "checked", report.Checked, "fixed", report.Fixed, "errors", report.Errors)
	}); err != nil {
		return fmt.Errorf("failed to schedule share repair: %w", err)
	}
	if _, err := scheduler.AddFunc("@hourly", func() {
		cleared, err := proposalService.ClearExpiredReviewLater()
		if err != nil {
			log.Errorw("review-later sweep failed", "error", err)
			return
		}
		if cleared > 0 {
			log.Infow("cleared expired review-later markers", "count", cleared)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule review-later sweep: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Invitation validation is public: the recipient has no account yet.
	v1.GET("/invitations/validate", invitationHandler.ValidateInvitation)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// User profile
	protected.GET("/auth/profile", authHandler.GetProfile)

	// Interactive lookups share one rate limit
	searchLimit := middleware.RateLimit(appConfig.SearchRateLimit, appConfig.SearchRateBurst)

	// Client routes
	clients := protected.Group("/clients")
	clients.POST("", clientHandler.CreateClient)
	clients.GET("", clientHandler.GetClients)
	clients.GET("/search", searchLimit, clientHandler.SearchClients)
	clients.GET("/export", clientHandler.ExportClients)
	clients.GET("/:id", clientHandler.GetClient)
	clients.PUT("/:id", clientHandler.UpdateClient)
	clients.DELETE("/:id", clientHandler.DeleteClient)
	clients.GET("/:id/portfolio", portfolioHandler.GetClientPortfolio)

	// Proposal routes
	proposals := protected.Group("/proposals")
	proposals.POST("", proposalHandler.CreateProposal)
	proposals.GET("", proposalHandler.GetProposals)
	proposals.GET("/:id", proposalHandler.GetProposal)
	proposals.PUT("/:id", proposalHandler.UpdateProposal)
	proposals.POST("/:id/submit", proposalHandler.SubmitProposal)
	proposals.POST("/:id/approve", proposalHandler.ApproveProposal)
	proposals.POST("/:id/reject", proposalHandler.RejectProposal)
	proposals.POST("/:id/archive", proposalHandler.ArchiveProposal)
	proposals.POST("/:id/review-later", proposalHandler.ToggleReviewLater)
	proposals.POST("/:id/invitations", invitationHandler.CreateInvitation)

	// Invitation management
	protected.DELETE("/invitations/:id", invitationHandler.RevokeInvitation)

	// Portfolio
	protected.GET("/portfolio", portfolioHandler.GetAgentPortfolio)

	// Notifications
	notifications := protected.Group("/notifications")
	notifications.GET("", notificationHandler.GetNotifications)
	notifications.POST("/:id/read", notificationHandler.MarkRead)
	notifications.POST("/read-all", notificationHandler.MarkAllRead)

	// Address lookup
	placesGroup := protected.Group("/places")
	placesGroup.GET("/autocomplete", searchLimit, placesHandler.Autocomplete)
	placesGroup.GET("/details", placesHandler.GetDetails)

	// Admin routes
	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.GET("/settings/:key", settingsHandler.GetSetting)
	admin.PUT("/settings/:key", settingsHandler.UpdateSetting)
	admin.POST("/repair-shares", portfolioHandler.RepairShares)

	log.Infof("Starting Carbonflow backend server on port %s", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
