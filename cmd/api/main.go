package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "formintake/api/swagger" // swagger docs
	"formintake/internal/cache"
	"formintake/internal/config"
	"formintake/internal/database"
	"formintake/internal/document"
	"formintake/internal/generator"
	"formintake/internal/handler"
	"formintake/internal/messaging"
	"formintake/internal/middleware"
	"formintake/internal/repository"
	"formintake/internal/service"
	"formintake/internal/storage"
	"formintake/internal/websocket"
	"formintake/internal/workflow"
	"formintake/pkg/health"
	"formintake/pkg/logger"
	"formintake/pkg/retrier"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// @title           Forms Intake API
// @version         1.0
// @description     Form templates, multi-page submissions and the review workflow.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logger.Init(logger.Config{
		LogFile:   cfg.Log.File,
		LogLevel:  cfg.Log.Level,
		AppName:   "formintake",
		AddCaller: true,
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := retrier.Connect(5, 2*time.Second, func() (*gorm.DB, error) {
		return database.NewConnection(cfg.Database.DSN())
	})
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}
	log.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

	checker := health.NewHealthChecker(log)
	checker.Register("database", health.Func(func() bool {
		sqlDB, err := db.DB()
		return err == nil && sqlDB.Ping() == nil
	}))

	// Optional infrastructure. Each piece degrades to a no-op when unconfigured.
	templateCache := newTemplateCache(cfg, log, checker)
	store := newObjectStore(ctx, cfg, log)
	defer store.Close()

	wsHub := websocket.NewHub(log)
	go wsHub.Run(ctx)

	var publisher service.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		pub, err := retrier.Connect(3, 2*time.Second, func() (*messaging.Publisher, error) {
			return messaging.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		})
		if err != nil {
			log.Warn("rabbitmq unavailable, workflow events will not be published", zap.Error(err))
		} else {
			defer pub.Close()
			publisher = pub
			checker.Register("rabbitmq", pub)
		}
	}

	auth := middleware.NewAuth(cfg.Auth.JWTSecret, cfg.Server.Environment == "production")

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	gen := generator.New(generator.NewOpenAIClient(generator.OpenAIConfig{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	}), document.TextExtractor{}, log)
	machine := workflow.New(cfg.Workflow.Reviewers, cfg.Workflow.AllowReturnFromSubmitted)

	userService := service.NewUserService(userRepo, auth, cfg.Auth.TokenTTL)
	auditService := service.NewAuditService(auditRepo)
	notificationService := service.NewNotificationService(notificationRepo, wsHub, publisher, log)
	templateService := service.NewTemplateService(service.TemplateServiceDeps{
		Tx:        txManager,
		Repo:      templateRepo,
		Audit:     auditRepo,
		Cache:     templateCache,
		Store:     store,
		Generator: gen,
		MaxUpload: cfg.Server.MaxUploadBytes,
		Logger:    log,
	})
	workflowDeps := service.SubmissionServiceDeps{
		Tx:        txManager,
		Repo:      submissionRepo,
		Audit:     auditRepo,
		Templates: templateService,
		Machine:   machine,
		Notifier:  notificationService,
		Logger:    log,
	}
	submissionService := service.NewSubmissionService(workflowDeps)
	reviewService := service.NewReviewService(workflowDeps)

	if cfg.Auth.AdminPassword != "" {
		if err := userService.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			log.Error("failed to create bootstrap admin", zap.Error(err))
		}
	}

	// Set up Gin Router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", checker.Handle)
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, auth.Secret())
	})

	// API Routing
	api := router.Group("")
	handler.NewAuthHandler(userService, auth, cfg.Auth.TokenTTL).RegisterRoutes(api)
	handler.NewFormHandler(templateService, submissionService, auth, cfg.Server.MaxUploadBytes).RegisterRoutes(api)
	handler.NewSubmissionHandler(submissionService, auth).RegisterRoutes(api)
	handler.NewReviewHandler(reviewService, auth).RegisterRoutes(api)
	handler.NewNotificationHandler(notificationService, auth).RegisterRoutes(api)
	handler.NewAuditHandler(auditService, auth).RegisterRoutes(api)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newTemplateCache(cfg *config.Config, log *logger.Logger, checker *health.HealthChecker) cache.TemplateCache {
	if cfg.Redis.URL == "" {
		return cache.Nop{}
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Warn("invalid REDIS_URL, template cache disabled", zap.Error(err))
		return cache.Nop{}
	}
	c := cache.NewRedisTemplateCache(redis.NewClient(opts), cfg.Redis.TTL, log)
	checker.Register("redis", c)
	return c
}

func newObjectStore(ctx context.Context, cfg *config.Config, log *logger.Logger) storage.ObjectStore {
	switch cfg.Storage.Driver {
	case "minio":
		s, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.MinioEndpoint,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			Bucket:    cfg.Storage.MinioBucket,
			UseSSL:    cfg.Storage.MinioUseSSL,
		}, log)
		if err != nil {
			log.Warn("minio unavailable, uploads will not be kept", zap.Error(err))
			return storage.Nop{}
		}
		return s
	case "gcs":
		s, err := storage.NewGCSStore(ctx, cfg.Storage.GCSBucket, cfg.Storage.GCSCredentialsPath)
		if err != nil {
			log.Warn("gcs unavailable, uploads will not be kept", zap.Error(err))
			return storage.Nop{}
		}
		return s
	default:
		return storage.Nop{}
	}
}
