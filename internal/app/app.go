package app

import (
	"context"
	"ichat_backend/internal/config"
	"ichat_backend/internal/controller"
	"ichat_backend/internal/repository"
	"ichat_backend/internal/service"
	"ichat_backend/pkg/configwatcher"
	"ichat_backend/pkg/database"
	"ichat_backend/pkg/logger"
	"ichat_backend/pkg/monitoring"
	"ichat_backend/pkg/security"
	"ichat_backend/pkg/tracing"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config    *config.Config
	ConfigDir string
	Router    *gin.Engine
	DB        *gorm.DB
	Redis     *redis.Client

	services        *services
	limiter         *security.Limiter
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user         *repository.UserRepository
	relationship *repository.RelationshipRepository
	conversation *repository.ConversationRepository
	message      *repository.MessageRepository
}

type services struct {
	auth         *service.AuthService
	storage      service.StorageProvider
	relationship *service.RelationshipService
	conversation *service.ConversationService
	group        *service.GroupService
	message      *service.MessageService
}

type controllers struct {
	auth         *controller.AuthController
	relationship *controller.RelationshipController
	chat         *controller.ChatController
	health       *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:         repository.NewUserRepository(db),
		relationship: repository.NewRelationshipRepository(db),
		conversation: repository.NewConversationRepository(db, rdb),
		message:      repository.NewMessageRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, storage service.StorageProvider) *services {
	s := &services{storage: storage}

	s.auth = service.NewAuthService(repos.user, cfg)
	s.relationship = service.NewRelationshipService(repos.relationship, repos.user)
	s.conversation = service.NewConversationService(repos.conversation, repos.message, repos.user, s.relationship)
	s.group = service.NewGroupService(repos.conversation, repos.user, repos.relationship)
	s.message = service.NewMessageService(repos.message, s.conversation, storage, service.PolicyFromConfig(cfg.Chat))

	// 上传策略随配置文件热更新
	a.RegisterConfigCallback(func(c *config.Config) {
		s.message.SetPolicy(service.PolicyFromConfig(c.Chat))
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:         controller.NewAuthController(s.auth),
		relationship: controller.NewRelationshipController(s.relationship),
		chat:         controller.NewChatController(s.conversation, s.group, s.message),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	a.limiter = security.NewLimiter(cfg.RateLimit.MaxRequests, window)
	router.Use(a.limiter.Middleware())

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New 组装仓储、服务、控制器和路由，不做任何外部连接
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, storage service.StorageProvider) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	app.services = app.initServices(repos, cfg, storage)
	controllers := app.initControllers(app.services, db, rdb)

	monitoring.Init()

	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

// NewApp 连接数据库与缓存并初始化日志、追踪
func NewApp(cfg *config.Config, configDir string) *App {
	if err := logger.InitLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Log.Info("Logger initialized successfully", zap.String("file", cfg.Log.File))

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	migrate := cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := New(cfg, db, rdb, service.NewStorageProvider(&cfg.Storage))
	app.ConfigDir = configDir

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("ichat", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	return app
}

func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go a.limiter.Run(ctx)

	if a.ConfigDir != "" {
		configFile := filepath.Join(a.ConfigDir, "config.yaml")
		go func() {
			if err := configwatcher.Watch(ctx, configFile, a.applyConfig); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
}
