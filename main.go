package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/appliance-repair-api/config"
	"github.com/kendall-kelly/appliance-repair-api/controllers"
	"github.com/kendall-kelly/appliance-repair-api/middleware"
	"github.com/kendall-kelly/appliance-repair-api/models"
	"github.com/kendall-kelly/appliance-repair-api/services"
	"github.com/kendall-kelly/appliance-repair-api/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Appliance Repair API server...", zap.String("env", cfg.GoEnv))

	if err := config.ConnectDatabase(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	db := config.GetDB()
	if err := migrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migration completed successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := services.InitMediaService(ctx, cfg); err != nil {
		logger.Warn("Media storage unavailable, orders will be served without media URLs", zap.Error(err))
	}

	dispatcher, err := setupServices(cfg, db, logger)
	if err != nil {
		logger.Fatal("Failed to initialise services", zap.Error(err))
	}
	dispatcher.Start()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg, logger, middleware.EnsureValidToken(cfg))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server is running", zap.String("addr", "http://localhost:"+cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("Dispatcher did not drain before shutdown", zap.Error(err))
	}
}

// migrate creates or updates every table the API uses
func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.Order{},
		&models.Transaction{},
		&models.Notification{},
		&models.VerificationCode{},
	)
}

// setupServices builds the service graph on db and registers it for the
// handlers. The returned dispatcher has not been started.
func setupServices(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*services.Dispatcher, error) {
	store := services.NewGormStore(db)
	notifications := services.NewNotificationService(db)
	dispatcher := services.NewDispatcher(notifications, store, logger.Named("dispatcher"), cfg.DispatchQueueSize)

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Store:            store,
		Events:           dispatcher,
		Logger:           logger.Named("orders"),
		PrePaymentAmount: cfg.PrePaymentAmount,
	})
	if err != nil {
		return nil, err
	}

	services.SetOrderService(orders)
	services.SetNotificationService(notifications)
	services.SetVerificationService(services.NewVerificationService(db, services.LogCodeSender{Logger: logger.Named("verification")}, nil))
	controllers.SetLogger(logger.Named("http"))

	return dispatcher, nil
}

// setupRouter registers every route. auth authenticates the bearer token and
// is replaced in tests.
func setupRouter(cfg *config.Config, logger *zap.Logger, auth gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)

		v1.POST("/verification-codes", controllers.IssueVerificationCode)
		v1.POST("/verification-codes/verify", controllers.VerifyCode)

		authenticated := v1.Group("", auth)
		authenticated.POST("/users", controllers.CreateUser)

		user := authenticated.Group("", middleware.LoadCurrentUser())
		{
			user.GET("/users/me", controllers.GetMyProfile)
			user.PUT("/users/me", controllers.UpdateMyProfile)

			customers := middleware.RequireRoles(workflow.RoleIndividual, workflow.RoleCompany)
			user.GET("/addresses", customers, controllers.ListAddresses)
			user.POST("/addresses", customers, controllers.CreateAddress)
			user.POST("/media/uploads", customers, controllers.CreateMediaUpload)

			user.POST("/orders", customers, controllers.CreateOrder)
			user.GET("/orders", controllers.ListOrders)
			user.GET("/orders/:id", controllers.GetOrder)
			user.GET("/orders/:id/actions", controllers.GetOrderActions)

			for _, party := range workflow.Parties {
				user.PATCH("/"+string(party)+"/orders/:id/:action", controllers.TransitionOrder(party))
			}

			user.GET("/notifications", controllers.ListNotifications)
			user.PATCH("/notifications/read-all", controllers.MarkAllNotificationsRead)
			user.PATCH("/notifications/:id/read", controllers.MarkNotificationRead)
		}
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Appliance Repair API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
