package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/api/handlers"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/api/middleware"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/cache"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/config"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/services"
	"gorm.io/gorm"
)

const (
	loginAttemptLimit  = 5
	loginAttemptWindow = 5 * time.Minute
)

// Schedulers holds the background loops started alongside the API so the
// caller can stop them on shutdown
type Schedulers struct {
	Sync *services.SyncScheduler
	Poll *services.PollScheduler
}

// Stop halts both loops
func (s *Schedulers) Stop() {
	if s.Sync != nil {
		s.Sync.Stop()
	}
	if s.Poll != nil {
		s.Poll.Stop()
	}
}

// SetupRouter initializes the Gin router with all routes configured and
// starts the background schedulers
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *middleware.AuthManager, *Schedulers, error) {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.CORSOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Initialize auth manager
	authManager, err := middleware.NewAuthManager(cfg.DataDir, cfg.JWTSecret, middleware.DefaultTokenExpiry)
	if err != nil {
		return nil, nil, nil, err
	}

	// Initialize services
	logService := services.NewLogService(db)
	userService := services.NewUserService(db, logService)
	siteService := services.NewSiteService(db, cfg, logService, nil)
	syncService := services.NewSyncService(db, cfg, logService, siteService, cache.NewMemoryStore())
	submissionService := services.NewSubmissionService(db, logService)
	gmailService := services.NewGmailService(db, cfg, logService)
	smtpSender := services.NewSMTPSender(cfg)
	threadService := services.NewThreadService(db, cfg, logService, gmailService, smtpSender)
	replyService := services.NewReplyService(db, logService, gmailService)

	// Start background schedulers
	schedulers := &Schedulers{
		Sync: services.NewSyncScheduler(syncService, siteService, logService, cfg.SyncInterval()),
		Poll: services.NewPollScheduler(replyService, logService, cfg.PollInterval()),
	}
	schedulers.Sync.Start()
	schedulers.Poll.Start()

	loginCounter := cache.NewSlidingCounter(loginAttemptLimit, loginAttemptWindow)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, authManager.JWTManager, logService, loginCounter)
	userHandler := handlers.NewUserHandler(userService, logService)
	siteHandler := handlers.NewSiteHandler(siteService, syncService)
	submissionHandler := handlers.NewSubmissionHandler(submissionService)
	emailHandler := handlers.NewEmailHandler(threadService, replyService, gmailService)
	syncHandler := handlers.NewSyncHandler(syncService, siteService)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		// Apply API key middleware to all API routes
		api.Use(middleware.APIKeyMiddleware(authManager.APIKeyManager))

		// Auth routes (API key required, but no JWT required)
		auth := api.Group("/auth")
		{
			auth.POST("/login", middleware.LoginRateLimitMiddleware(loginCounter), authHandler.Login)
		}

		// Gmail OAuth callback (the browser redirect carries no JWT)
		api.GET("/gmail/callback", emailHandler.GmailCallback)

		// Protected routes (API key + JWT required)
		protected := api.Group("")
		protected.Use(middleware.JWTMiddleware(authManager.JWTManager))
		{
			protected.POST("/auth/refresh", authHandler.RefreshToken)
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/auth/me", authHandler.GetCurrentUser)

			// User routes
			userGroup := protected.Group("/users")
			{
				userGroup.PUT("/password", userHandler.ChangePassword)

				admin := userGroup.Group("", middleware.AdminMiddleware())
				{
					admin.GET("", userHandler.ListUsers)
					admin.POST("", userHandler.CreateUser)
					admin.PUT("/:id/active", userHandler.SetActive)
				}
			}

			// Site routes
			sites := protected.Group("/sites")
			{
				sites.GET("", siteHandler.ListSites)
				sites.POST("", siteHandler.CreateSite)
				sites.GET("/:id", siteHandler.GetSite)
				sites.PUT("/:id", siteHandler.UpdateSite)
				sites.DELETE("/:id", siteHandler.DeleteSite)
				sites.PUT("/:id/restore", siteHandler.RestoreSite)
				sites.POST("/:id/test", siteHandler.TestConnection)
				sites.POST("/:id/sync", siteHandler.SyncSite)
			}

			// Submission routes
			submissions := protected.Group("/submissions")
			{
				submissions.GET("", submissionHandler.ListSubmissions)
				submissions.GET("/:id", submissionHandler.GetSubmission)
				submissions.PUT("/:id/status", submissionHandler.UpdateStatus)
				submissions.PUT("/:id/lock", submissionHandler.Lock)
				submissions.PUT("/:id/unlock", submissionHandler.Unlock)
				submissions.DELETE("/:id", submissionHandler.DeleteSubmission)
				submissions.PUT("/:id/restore", submissionHandler.RestoreSubmission)
				submissions.POST("/:id/reply", emailHandler.SendReply)
			}

			// Gmail mailbox routes
			gmailGroup := protected.Group("/gmail")
			{
				gmailGroup.GET("/status", emailHandler.GmailStatus)
				gmailGroup.GET("/auth-url", emailHandler.GmailAuthURL)
				gmailGroup.DELETE("", emailHandler.GmailDisconnect)
				gmailGroup.POST("/poll", emailHandler.PollInbox)
			}

			// Bulk sync trigger
			protected.POST("/sync/run", syncHandler.RunAll)

			// Logs (admin only)
			protected.GET("/logs", middleware.AdminMiddleware(), userHandler.GetLogs)
		}
	}

	return router, authManager, schedulers, nil
}
