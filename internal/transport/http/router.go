package httptransport

import (
	"context"
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"commentbox/backend/internal/config"
	"commentbox/backend/internal/middleware"
	"commentbox/backend/internal/monitoring"
	"commentbox/backend/internal/service"
	"commentbox/backend/internal/storage"
	"commentbox/backend/internal/websocket"
)

// HealthChecker 可上报自身连通性的组件
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	CommentService *service.CommentService
	SearchService  *service.SearchService // 可为 nil，搜索端点返回不可用
	CaptchaService *service.CaptchaService
	WebSocketHub   *websocket.Hub // 可为 nil，不注册 /ws
	Store          storage.Store
	Cache          HealthChecker // 可为 nil，健康检查跳过缓存
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	if deps.Metrics != nil {
		router.Use(deps.Metrics.GinMiddleware())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	commentHandler := NewCommentHandler(deps.CommentService, deps.SearchService, deps.Metrics, deps.Logger)
	fileHandler := NewFileHandler(deps.CommentService, deps.Logger)

	// 健康检查：存储不可用返回 503，缓存不可用仅标记降级（读路径会回退到存储）
	router.GET("/health", func(c *gin.Context) {
		if deps.Store != nil {
			if err := deps.Store.Health(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "store": err.Error()})
				return
			}
		}

		status := gin.H{"status": "ok"}
		if deps.Cache != nil {
			if err := deps.Cache.Health(c.Request.Context()); err != nil {
				status["status"] = "degraded"
				status["cache"] = err.Error()
			}
		}
		c.JSON(http.StatusOK, status)
	})

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	api := router.Group("/api")
	{
		// ========== Comment Routes ==========
		commentRoutes := api.Group("/comments")
		{
			commentRoutes.GET("", commentHandler.listComments)
			commentRoutes.POST("", commentHandler.createComment)
			commentRoutes.GET("/search", commentHandler.searchComments)
			commentRoutes.GET("/:id", commentHandler.getComment)
		}

		// ========== Captcha Routes ==========
		if deps.CaptchaService != nil {
			captchaHandler := NewCaptchaHandler(deps.CaptchaService, deps.Logger)
			api.GET("/captcha", captchaHandler.newChallenge)
		}

		// ========== File Routes ==========
		api.GET("/files/:name", fileHandler.downloadAttachment)

		// ========== WebSocket Routes ==========
		if deps.WebSocketHub != nil {
			api.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
		}
	}

	return router
}
