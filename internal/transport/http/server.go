package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tenantrag/internal/app"
	"tenantrag/internal/metrics"
	"tenantrag/internal/pkg/jwtutil"
	"tenantrag/internal/pkg/logger"
	"tenantrag/internal/transport/http/handler"
	"tenantrag/internal/transport/http/middleware"
)

type RouterDeps struct {
	Log       *logger.Logger
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	GinMode   string
	JWTSecret string
	RateRPS   float64
	RateBurst int
	Heartbeat time.Duration

	Auth      *app.AuthService
	Chat      *app.ChatService
	Documents *app.DocumentService
	Health    *handler.HealthHandler
}

// NewRouter builds the public API. The returned function stops the rate
// limiter's eviction loop.
func NewRouter(d RouterDeps) (*gin.Engine, func()) {
	if d.GinMode != "" {
		gin.SetMode(d.GinMode)
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	router := gin.New()
	router.Use(middleware.AccessLog(d.Log, d.Metrics), gin.Recovery())

	mountOps(router, d.Health, d.Gatherer)

	limiter, stopLimiter := middleware.NewRateLimiter(d.RateRPS, d.RateBurst, d.Log)
	authJWT := middleware.AuthJWT(d.JWTSecret)

	authHandler := handler.NewAuthHandler(d.Auth)
	chatHandler := handler.NewChatHandler(d.Chat, d.Metrics, d.Log, d.Heartbeat)
	documentHandler := handler.NewDocumentHandler(d.Documents, d.Metrics, d.Log, d.Heartbeat)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/widget-token", limiter.Middleware(), authHandler.WidgetToken)
	authGroup.GET("/me", authJWT, authHandler.Me)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(authJWT)
	chatGroup.POST("/messages", limiter.Middleware(), chatHandler.SendMessage)
	chatGroup.GET("/stream", chatHandler.Stream)
	chatGroup.GET("/history", chatHandler.GetHistory)

	documentGroup := v1.Group("/documents")
	documentGroup.Use(authJWT, middleware.RequireRole(jwtutil.RoleUser))
	documentGroup.POST("", limiter.Middleware(), documentHandler.Upload)
	documentGroup.GET("", documentHandler.List)
	documentGroup.GET("/:id", documentHandler.Get)
	documentGroup.DELETE("/:id", documentHandler.Delete)
	documentGroup.GET("/:id/progress", documentHandler.Progress)

	return router, stopLimiter
}

// NewOpsRouter serves health and metrics for processes without a public API.
func NewOpsRouter(health *handler.HealthHandler, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	mountOps(router, health, gatherer)
	return router
}

func mountOps(router *gin.Engine, health *handler.HealthHandler, gatherer prometheus.Gatherer) {
	if health != nil {
		router.GET("/healthz", health.Check)
	}
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}
