package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/disposable/internal/config"
	"tempmail/disposable/internal/health"
	"tempmail/disposable/internal/middleware"
	"tempmail/disposable/internal/monitoring"
	"tempmail/disposable/internal/provider"
	"tempmail/disposable/internal/service"
	"tempmail/disposable/internal/websocket"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	mailboxes *service.MailboxService
	poller    *service.Poller
	providers *provider.Registry
	catalog   *provider.Catalog
	log       *zap.Logger
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	MailboxService *service.MailboxService
	Poller         *service.Poller
	Providers      *provider.Registry
	Catalog        *provider.Catalog
	Health         *health.HealthChecker // 为空时不注册健康检查路由
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	router.Use(middleware.RecoveryHandler(log, deps.Metrics))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.HTTPMetrics(deps.Metrics))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.SmallBodyLimit))

	origins := []string{"*"}
	if deps.Config != nil && len(deps.Config.Server.AllowedOrigins) > 0 {
		origins = deps.Config.Server.AllowedOrigins
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
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

	handler := &Handler{
		mailboxes: deps.MailboxService,
		poller:    deps.Poller,
		providers: deps.Providers,
		catalog:   deps.Catalog,
		log:       log,
	}

	api := router.Group("/api")
	{
		api.GET("/providers", handler.listProviders)
		api.GET("/mailboxes", handler.listMailboxes)
		api.POST("/mailboxes", handler.createMailbox)
		api.GET("/mailboxes/:address/messages", handler.listMessages)
		api.GET("/mailboxes/:address/messages/:id", handler.fetchMessage)
		api.GET("/mailboxes/:address/check", handler.checkMessages)
	}

	watcher := websocket.NewWatcher(deps.Poller, origins, log)
	router.GET("/ws/mailboxes/:address/watch", watcher.Handle)

	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "接口不存在")
	})

	return router
}
