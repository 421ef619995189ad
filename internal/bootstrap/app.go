package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "wine-tasting/internal/handler/http"
	wsHandler "wine-tasting/internal/handler/websocket"
	"wine-tasting/internal/hub"
	"wine-tasting/internal/infra/ai"
	gormpersistence "wine-tasting/internal/infra/persistence/gorm"
	"wine-tasting/internal/infra/setup"
	redisstate "wine-tasting/internal/infra/state/redis"
	"wine-tasting/internal/middleware"
	"wine-tasting/internal/service"
	"wine-tasting/internal/session"
	"wine-tasting/internal/tasks"
	"wine-tasting/internal/worker"
)

const (
	expireSchedule = "@every 10m"
	sweepInterval  = time.Minute
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	Registry    *session.Registry
	Hub         *hub.Hub
	AsynqServer *worker.WorkerServer
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
	stopSweep      chan struct{}
	sweepDone      sync.WaitGroup
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := newLogger(cfg)
	log.Info("Configuration loaded successfully")

	// 3. 初始化基础设施
	db, err := setup.InitDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// 4. 初始化 Repositories
	userRepo := gormpersistence.NewGormUserRepository(db)
	gameRepo := gormpersistence.NewGormGameRepository(db)
	playerRepo := gormpersistence.NewGormPlayerRepository(db)
	wineRepo := gormpersistence.NewGormWineRepository(db)
	answerRepo := gormpersistence.NewGormAnswerRepository(db)
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix, redisstate.DefaultPointerTTL)
	log.Info("Repositories initialized")

	// 5. 初始化 Services
	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	var generator service.CharacteristicGenerator
	if aiClient := ai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel); aiClient.Enabled() {
		generator = aiClient
		log.WithField("model", cfg.OpenAIModel).Info("AI characteristic generation enabled")
	} else {
		log.Warn("OPENAI_API_KEY not set, games will use fallback characteristics")
	}
	gameService := service.NewGameService(gameRepo, playerRepo, wineRepo, answerRepo, stateRepo, generator)

	// 6. 初始化房间注册表、状态机和 Hub
	registry := session.NewRegistry()
	engine := session.NewEngine(registry, gameRepo, playerRepo, wineRepo, answerRepo, stateRepo)
	hubInstance := hub.NewHub(engine)
	log.Info("Room registry, engine and hub initialized")

	// 7. 初始化 Handlers
	authHandler := httpHandler.NewAuthHandler(authService)
	gameHandler := httpHandler.NewGameHandler(gameService)
	websocketHandler := wsHandler.NewWebSocketHandler(hubInstance, cfg.CORSOrigins)

	// 8. 初始化 Worker Server
	workerServer := worker.NewWorkerServer(redisClientOpt, gameService, log)

	// 9. 初始化 Gin Engine 和路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(corsMiddleware(cfg.CORSOrigins))

	api := router.Group("/api")
	api.Use(middleware.RateLimit(stateRepo, cfg.RateLimitMax, cfg.RateLimitWindow))
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.GET("/me", middleware.Auth(cfg.JWTSecret), authHandler.Me)
	}
	gameRoutes := api.Group("/games")
	{
		gameRoutes.POST("", middleware.Auth(cfg.JWTSecret), gameHandler.CreateGame)
		gameRoutes.GET("/:code", gameHandler.GetGame)
		gameRoutes.GET("/:code/results", gameHandler.GetResults)
		gameRoutes.GET("/:code/players/:playerId", gameHandler.GetPlayerReport)
	}
	router.GET("/ws", middleware.OptionalAuth(cfg.JWTSecret), websocketHandler.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Application assembled successfully")
	return &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		Registry:       registry,
		Hub:            hubInstance,
		AsynqServer:    workerServer,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
		stopSweep:      make(chan struct{}),
	}, nil
}

func newLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel) // 已在 LoadConfig 中校验
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	// 各包通过 logrus 包级函数记录日志，与 App 使用同样的格式和级别
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)
	return log
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	go a.AsynqServer.Start()
	a.registerPeriodicTasks()
	a.startRoomSweeper()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// registerPeriodicTasks 注册过期游戏清理任务。多个实例同时运行时由 asynq 保证只入队一次。
func (a *App) registerPeriodicTasks() {
	a.scheduler = asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{Location: time.UTC})

	task, err := tasks.NewGameExpireTask(a.Config.GameStaleAfter)
	if err != nil {
		a.Log.Errorf("Failed to create game expiry task: %v", err)
		return
	}
	entryID, err := a.scheduler.Register(expireSchedule, task, asynq.Queue("default"), asynq.Unique(5*time.Minute))
	if err != nil {
		a.Log.Errorf("Could not register game expiry task: %v", err)
		return
	}
	a.Log.Infof("Game expiry task registered with schedule '%s' (EntryID: %s)", expireSchedule, entryID)

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := a.scheduler.Run(); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
		}
	}()
}

// startRoomSweeper 定期清理没有玩家连接且空闲超过 RoomIdleTTL 的房间
func (a *App) startRoomSweeper() {
	a.sweepDone.Add(1)
	go func() {
		defer a.sweepDone.Done()
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopSweep:
				return
			case now := <-ticker.C:
				if removed := a.Registry.Sweep(a.Config.RoomIdleTTL, now); len(removed) > 0 {
					a.Log.WithFields(logrus.Fields{"count": len(removed), "codes": removed}).Info("Swept idle rooms")
				}
			}
		}
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 先停止接收新的 HTTP 请求
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 2. 停止 Hub，等待房间内正在执行的命令结束并关闭所有连接
	if a.Hub != nil {
		a.Hub.Stop()
	}

	// 3. 停止后台任务
	close(a.stopSweep)
	a.sweepDone.Wait()
	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 4. 关闭 Redis 和数据库连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// corsMiddleware 只回显允许列表中的 Origin，列表包含 "*" 时允许所有来源
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[strings.TrimRight(origin, "/")]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			c.Writer.Header().Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		// 查询参数中可能带有 token，不写入日志
		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
		})

		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			entry.Error(errorMessage)
		} else if statusCode >= 500 {
			entry.Error("Server error")
		} else if statusCode >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request handled")
		}
	}
}
