package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/doc-retrieval-engine/api"
	"github.com/fyerfyer/doc-retrieval-engine/api/handler"
	"github.com/fyerfyer/doc-retrieval-engine/api/middleware"
	appconfig "github.com/fyerfyer/doc-retrieval-engine/config"
	"github.com/fyerfyer/doc-retrieval-engine/internal/cache"
	"github.com/fyerfyer/doc-retrieval-engine/internal/database"
	"github.com/fyerfyer/doc-retrieval-engine/internal/document"
	"github.com/fyerfyer/doc-retrieval-engine/internal/index"
	"github.com/fyerfyer/doc-retrieval-engine/internal/repository"
	"github.com/fyerfyer/doc-retrieval-engine/internal/search"
	"github.com/fyerfyer/doc-retrieval-engine/internal/services"
	"github.com/fyerfyer/doc-retrieval-engine/pkg/storage"
	"github.com/fyerfyer/doc-retrieval-engine/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// 加载.env文件中的环境变量（如果存在）
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment variables from .env")
	}

	configPath := flag.String("config", "config.yaml", "Path to config file")
	mode := flag.String("mode", "release", "Run mode (debug/release)")
	flag.Parse()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	gin.SetMode(*mode)

	logger := setupLogger(cfg.Log)
	logger.Info("Starting document retrieval engine...")

	if err := setupDatabase(cfg, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	fileStorage, err := setupStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 初始化任务队列（如果启用）
	var queue taskqueue.Queue
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.Info("Task queue initialized successfully")
	}

	chunker := document.NewChunker(document.ChunkerConfig{
		ChunkSize:    cfg.Document.ChunkSize,
		ChunkOverlap: cfg.Document.ChunkOverlap,
		MinChunkSize: cfg.Document.MinChunkSize,
	})

	repo := repository.NewDocumentRepository()

	idx := index.NewIndex(index.Options{
		RemoveStopwords: cfg.Index.RemoveStopwords,
	})
	retriever := search.NewRetriever(idx, search.NewEnhancer(nil),
		search.WithMaxResults(cfg.Search.MaxResults),
		search.WithThreshold(cfg.Search.Threshold),
		search.WithOverfetchFactor(cfg.Search.Overfetch),
		search.WithLogger(logger),
	)

	searchOptions := []services.SearchOption{
		services.WithSearchLogger(logger),
	}
	if cfg.Index.SnapshotPath != "" {
		searchOptions = append(searchOptions, services.WithSnapshotPath(cfg.Index.SnapshotPath))
	}
	if cfg.Cache.Enable {
		cacheService, err := setupCache(cfg)
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
		searchOptions = append(searchOptions,
			services.WithSearchCache(cacheService),
			services.WithCacheTTL(time.Duration(cfg.Cache.TTL)*time.Second),
		)
	}

	searchService := services.NewSearchService(idx, retriever, repo, searchOptions...)

	documentOptions := []services.DocumentOption{
		services.WithLogger(logger),
		services.WithSearchService(searchService),
	}
	if queue != nil {
		documentOptions = append(documentOptions,
			services.WithTaskQueue(queue),
			services.WithAsyncProcessing(true),
		)
		logger.Info("Document processing will use async task queue")
	}

	documentService := services.NewDocumentService(fileStorage, chunker, repo, documentOptions...)

	// 启动任务工作者
	if queue != nil {
		worker, err := setupWorker(cfg, queue, documentService, searchService, logger)
		if err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()
	}

	// 启动时恢复索引：优先加载快照，失败则从数据库重建
	if stats, err := searchService.RestoreIndex(context.Background()); err != nil {
		logger.WithError(err).Warn("Failed to restore index, search unavailable until first rebuild")
	} else {
		logger.WithFields(logrus.Fields{
			"chunks":    stats.ChunkCount,
			"documents": stats.DocumentCount,
		}).Info("Index restored")
	}

	r := api.SetupRouter(
		handler.NewDocumentHandler(documentService),
		handler.NewSearchHandler(searchService),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger 配置日志系统
// 指定日志文件时使用lumberjack做滚动切割，同时保留stdout输出
func setupLogger(cfg appconfig.LogConfig) *logrus.Logger {
	logger := middleware.GetLogger()

	switch cfg.Level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	return logger
}

// setupDatabase 初始化数据库连接并执行迁移
func setupDatabase(cfg *appconfig.Config, logger *logrus.Logger) error {
	dbConfig := database.DefaultConfig()
	dbConfig.Type = cfg.Database.Type
	dbConfig.DSN = cfg.Database.DSN

	return database.Setup(dbConfig, logger)
}

// setupStorage 根据配置创建文件存储
func setupStorage(cfg *appconfig.Config) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "minio":
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
	default:
		if err := os.MkdirAll(cfg.Storage.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %v", err)
		}
		return storage.NewLocalStorage(storage.LocalConfig{
			Path: cfg.Storage.Path,
		})
	}
}

// setupCache 根据配置创建缓存服务
func setupCache(cfg *appconfig.Config) (cache.Cache, error) {
	cacheConfig := cache.Config{
		Type:            cfg.Cache.Type,
		DefaultTTL:      time.Duration(cfg.Cache.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	}

	if cfg.Cache.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Cache.Address
		cacheConfig.RedisPassword = cfg.Cache.Password
		cacheConfig.RedisDB = cfg.Cache.DB
	}

	return cache.NewCache(cacheConfig)
}

// setupTaskQueue 创建Redis任务队列
func setupTaskQueue(cfg *appconfig.Config, logger *logrus.Logger) (taskqueue.Queue, error) {
	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = cfg.Queue.RedisAddr
	queueConfig.RedisPassword = cfg.Queue.RedisPassword
	queueConfig.RedisDB = cfg.Queue.RedisDB
	queueConfig.Concurrency = cfg.Queue.Concurrency
	queueConfig.RetryLimit = cfg.Queue.RetryLimit
	queueConfig.RetryDelay = time.Duration(cfg.Queue.RetryDelay) * time.Second

	logger.WithFields(logrus.Fields{
		"redis_addr":  cfg.Queue.RedisAddr,
		"concurrency": cfg.Queue.Concurrency,
		"retry_limit": cfg.Queue.RetryLimit,
	}).Info("Setting up task queue")

	return taskqueue.NewQueue("redis", queueConfig)
}

// setupWorker 创建并启动任务工作者
func setupWorker(
	cfg *appconfig.Config,
	queue taskqueue.Queue,
	docService *services.DocumentService,
	searchService *services.SearchService,
	logger *logrus.Logger,
) (taskqueue.Worker, error) {
	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		return nil, fmt.Errorf("task worker requires a redis queue, got %T", queue)
	}

	queueConfig := taskqueue.DefaultConfig()
	queueConfig.Concurrency = cfg.Queue.Concurrency
	queueConfig.RetryDelay = time.Duration(cfg.Queue.RetryDelay) * time.Second

	worker := taskqueue.NewRedisWorker(redisQueue, queueConfig)

	processor := services.NewTaskProcessor(docService, searchService, queue, logger)
	for _, taskType := range processor.GetTaskTypes() {
		worker.RegisterHandler(taskType, processor)
	}

	if err := worker.Start(); err != nil {
		return nil, err
	}
	logger.Info("Task worker started")

	return worker, nil
}
