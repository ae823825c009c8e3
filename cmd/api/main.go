package main

import (
	"context"
	"os"
	"time"

	_ "approvalflow/api/swagger" // swagger docs
	"approvalflow/internal/database"
	"approvalflow/internal/handler"
	"approvalflow/internal/middleware"
	"approvalflow/internal/repository"
	"approvalflow/internal/service"
	"approvalflow/internal/storage"
	ws "approvalflow/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// @title           Approval Workflow API
// @version         1.0
// @description     Request submission, manager-chain approval routing and immutable audit trail.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if lvl, err := zerolog.ParseLevel(envOr("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := godotenv.Load("configs/.env"); err != nil {
		log.Info().Msg("no configs/.env file found, using environment")
	}

	dsn := "postgres://" + envOr("DB_USER", "postgres") + ":" + envOr("DB_PASSWORD", "postgres") +
		"@" + envOr("DB_HOST", "localhost") + ":" + envOr("DB_PORT", "5432") +
		"/" + envOr("DB_NAME", "postgres") + "?sslmode=" + envOr("DB_SSLMODE", "disable")

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	log.Info().Msg("connected to PostgreSQL")

	// Optional Redis cache for directory lookups; run without it when absent
	var cache *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cache = redis.NewClient(&redis.Options{Addr: addr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := cache.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, continuing without cache")
			cache = nil
		} else {
			log.Info().Str("addr", addr).Msg("redis connected")
		}
		cancel()
	}

	publicBaseURL := envOr("PUBLIC_BASE_URL", "http://localhost:8080")
	blobs, err := storage.NewDiskStore(envOr("STORAGE_ROOT", "data/blobs"), publicBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("blob storage init failed")
	}

	// WebSocket hub for transition notifications
	wsHub := ws.NewHub()
	go wsHub.Run()

	// Repository -> Service -> Handler
	txManager := repository.NewTransactionManager(db)
	requestRepo := repository.NewRequestRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	userRepo := repository.NewUserRepository(db)

	directoryService := service.NewDirectoryService(employeeRepo, cache)
	documentService := service.NewDocumentService(documentRepo, blobs)
	auditService := service.NewAuditService(auditRepo)
	requestService := service.NewRequestService(requestRepo, txManager, documentService, auditService, directoryService, wsHub)
	userService := service.NewUserService(userRepo, employeeRepo, txManager)

	authHandler := handler.NewAuthHandler(userService)
	requestHandler := handler.NewRequestHandler(requestService)
	documentHandler := handler.NewDocumentHandler(documentService)
	auditHandler := handler.NewAuditHandler(auditService)
	employeeHandler := handler.NewEmployeeHandler(directoryService)

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// Stored blobs, addressable via the locator URLs
	router.Static("/files", blobs.Root())

	router.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	authHandler.RegisterRoutes(router.Group(""))
	requestHandler.RegisterRoutes(router.Group(""))
	documentHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))
	employeeHandler.RegisterRoutes(router.Group(""))

	port := envOr("PORT", "8080")
	log.Info().Str("port", port).Msg("server listening")
	if err := router.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
