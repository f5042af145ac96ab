package main

// @title CommentBox Backend API
// @version 1.0.0
// @description 评论系统后端 API 文档
// @BasePath /
// @schemes http https

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"commentbox/backend/internal/config"
	"commentbox/backend/internal/event"
	"commentbox/backend/internal/logger"
	"commentbox/backend/internal/monitoring"
	"commentbox/backend/internal/service"
	"commentbox/backend/internal/storage"
	"commentbox/backend/internal/storage/filesystem"
	"commentbox/backend/internal/storage/memory"
	redisstore "commentbox/backend/internal/storage/redis"
	"commentbox/backend/internal/storage/s3"
	sqlstore "commentbox/backend/internal/storage/sql"
	httptransport "commentbox/backend/internal/transport/http"
	"commentbox/backend/internal/websocket"
)

// main 是评论系统后端 HTTP 服务的程序入口。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()
	log.Info("starting commentbox API server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			log.Fatal("failed to initialize database storage", zap.Error(err))
		}
		log.Info("using sql storage", zap.String("driver", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage")
	}
	defer store.Close()

	// 初始化 Redis（列表缓存、验证码、搜索索引共用一个连接）
	cache, err := redisstore.NewCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("redis unavailable, running without cache, captcha and search", zap.Error(err))
		cache = nil
	} else {
		log.Info("redis connected", zap.String("address", cfg.Redis.Address))
		defer cache.Close()
	}

	// 初始化附件内容存储
	fileStore, err := newFileStore(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize file storage", zap.Error(err))
	}

	// 初始化服务层
	metrics := monitoring.NewMetrics()
	commentService := service.NewCommentService(store, log)
	commentService.SetFileStore(fileStore, cfg.Comment.MaxFileSize)
	commentService.SetMetrics(metrics)

	var searchService *service.SearchService
	var captchaService *service.CaptchaService
	var searchIndex *redisstore.SearchIndex
	if cache != nil {
		commentService.SetCache(cache, cfg.Comment.CacheTTL)
		searchIndex = redisstore.NewSearchIndex(cache)
		searchService = service.NewSearchService(searchIndex)
		if cfg.Captcha.Enabled {
			captchaService = service.NewCaptchaService(cache, cfg.Captcha.TTL)
			commentService.SetCaptcha(captchaService)
		}
	}

	// 创建 WebSocket Hub
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, log)
	wsHub.SetMetrics(metrics)

	// 初始化事件总线：生产者 + 两个独立消费组
	var producer *event.Producer
	var consumers []*event.Consumer
	if cfg.Kafka.Enabled {
		producer = event.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		commentService.SetPublisher(producer)
		defer producer.Close()

		if searchIndex != nil {
			consumers = append(consumers, event.NewConsumer(
				cfg.Kafka.Brokers, cfg.Kafka.IndexerGroup, cfg.Kafka.Topic,
				event.IndexerHandler(searchIndex, log), log))
		}
		consumers = append(consumers, event.NewConsumer(
			cfg.Kafka.Brokers, cfg.Kafka.NotifierGroup, cfg.Kafka.Topic,
			event.BroadcastHandler(wsHub, log), log))
		for _, consumer := range consumers {
			consumer.SetMetrics(metrics)
		}

		log.Info("kafka event bus enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	} else {
		log.Info("kafka disabled, comment events will not be published")
	}

	// 创建 HTTP 路由
	routerDeps := httptransport.RouterDependencies{
		Config:         cfg,
		CommentService: commentService,
		SearchService:  searchService,
		CaptchaService: captchaService,
		WebSocketHub:   wsHub,
		Store:          store,
		Metrics:        metrics,
		Logger:         log,
	}
	if cache != nil {
		routerDeps.Cache = cache
	}
	router := httptransport.NewRouter(routerDeps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(gctx)
		return nil
	})

	for _, consumer := range consumers {
		consumer := consumer
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	g.Go(func() error {
		log.Info("API server listening", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
		return
	}
	log.Info("server stopped cleanly")
}

// newFileStore 按配置选择附件存储后端
func newFileStore(cfg *config.Config, log *zap.Logger) (service.FileStore, error) {
	switch cfg.Storage.Type {
	case "s3":
		fileStore, err := s3.NewStore(context.Background(), s3.Config{
			Endpoint:  cfg.Storage.S3Endpoint,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
			UseSSL:    cfg.Storage.S3UseSSL,
			Bucket:    cfg.Storage.S3Bucket,
		})
		if err != nil {
			return nil, err
		}
		log.Info("s3 attachment storage initialized",
			zap.String("endpoint", cfg.Storage.S3Endpoint),
			zap.String("bucket", cfg.Storage.S3Bucket))
		return fileStore, nil
	default:
		fileStore, err := filesystem.NewStore(cfg.Storage.BasePath)
		if err != nil {
			return nil, err
		}
		log.Info("filesystem attachment storage initialized", zap.String("path", cfg.Storage.BasePath))
		return fileStore, nil
	}
}
