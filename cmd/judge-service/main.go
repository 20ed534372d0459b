package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/common/db"
	"codearena/internal/common/mq"
	"codearena/internal/common/storage"
	"codearena/internal/judge/controller"
	"codearena/internal/judge/imagecache"
	"codearena/internal/judge/notify"
	"codearena/internal/judge/profile"
	"codearena/internal/judge/repository"
	"codearena/internal/judge/sandbox"
	"codearena/internal/judge/sandbox/engine"
	"codearena/internal/judge/service"
	"codearena/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
	if err != nil {
		logger.Error(context.Background(), "init minio failed", zap.Error(err))
		return
	}

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka.toMQConfig())
	if err != nil {
		logger.Error(context.Background(), "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mqClient.Close()
	}()

	registry := buildRegistry(appCfg.Languages)

	images, err := imagecache.New(imagecache.Config{
		RootDir:  appCfg.ImageCache.RootDir,
		Bucket:   appCfg.ImageCache.Bucket,
		TTL:      appCfg.ImageCache.TTL,
		LockWait: appCfg.ImageCache.LockWait,
		Storage:  objStorage,
		Lock:     redisCache,
	})
	if err != nil {
		logger.Error(context.Background(), "init image cache failed", zap.Error(err))
		return
	}

	eng, err := engine.NewEngine(appCfg.Sandbox.toEngineConfig())
	if err != nil {
		logger.Error(context.Background(), "init sandbox engine failed", zap.Error(err))
		return
	}
	executor, err := sandbox.NewExecutor(sandbox.Config{
		WorkRoot: appCfg.Judge.WorkRoot,
		Engine:   eng,
		Images:   images,
	})
	if err != nil {
		logger.Error(context.Background(), "init sandbox executor failed", zap.Error(err))
		return
	}

	problemRepo, err := repository.NewProblemRepository(mysqlDB.DB())
	if err != nil {
		logger.Error(context.Background(), "init problem repository failed", zap.Error(err))
		return
	}
	submissionRepo, err := repository.NewSubmissionRepository(mysqlDB.DB())
	if err != nil {
		logger.Error(context.Background(), "init submission repository failed", zap.Error(err))
		return
	}
	userRepo, err := repository.NewUserRepository(mysqlDB.DB())
	if err != nil {
		logger.Error(context.Background(), "init user repository failed", zap.Error(err))
		return
	}
	statusRepo := repository.NewStatusRepository(redisCache, appCfg.Judge.StatusTTL)
	eventPublisher := repository.NewMQEventPublisher(mqClient, appCfg.Kafka.StatusTopic)

	judgeSvc, err := service.NewService(service.Config{
		Registry:      registry,
		Executor:      executor,
		Problems:      problemRepo,
		Submissions:   submissionRepo,
		Users:         userRepo,
		Status:        statusRepo,
		Events:        eventPublisher,
		MaxCodeBytes:  appCfg.Judge.MaxCodeBytes,
		PoolSize:      appCfg.Judge.PoolSize,
		DBTimeout:     appCfg.Judge.DBTimeout,
		StatusTimeout: appCfg.Judge.StatusTimeout,
	})
	if err != nil {
		logger.Error(context.Background(), "init judge service failed", zap.Error(err))
		return
	}

	hub := notify.NewHub()
	defer hub.Close()
	statusConsumer := notify.NewStatusConsumer(mqClient, appCfg.Kafka.StatusTopic, appCfg.Kafka.ConsumerGroup, hub)
	if err := statusConsumer.Start(context.Background()); err != nil {
		logger.Error(context.Background(), "subscribe status topic failed", zap.Error(err))
		return
	}
	if err := mqClient.Start(); err != nil {
		logger.Error(context.Background(), "start kafka consumer failed", zap.Error(err))
		return
	}

	httpServer := buildHTTPServer(appCfg, judgeSvc, submissionRepo, statusRepo, hub)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	_ = mqClient.Stop()
}

// buildRegistry uses configured languages when present, falling back to the
// built-in table. Configured entries inherit the built-in limits.
func buildRegistry(configured []profile.Profile) *profile.Registry {
	if len(configured) == 0 {
		return profile.NewDefaultRegistry()
	}
	defaults := make(map[string]profile.Profile)
	for _, p := range profile.DefaultProfiles() {
		defaults[p.ID] = p
	}
	for i := range configured {
		if base, ok := defaults[configured[i].ID]; ok {
			configured[i].DefaultLimits = base.DefaultLimits
		} else {
			configured[i].DefaultLimits = profile.DefaultProfiles()[0].DefaultLimits
		}
	}
	return profile.NewRegistry(configured)
}

func buildHTTPServer(cfg *AppConfig, judgeSvc *service.Service, submissions *repository.SubmissionRepository, statusRepo *repository.StatusRepository, hub *notify.Hub) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	judgeController := controller.NewJudgeController(judgeSvc, submissions, statusRepo, hub)
	controller.RegisterRoutes(router, judgeController, cfg.Auth)

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
