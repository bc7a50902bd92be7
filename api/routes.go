package api

import (
	chatHandlers "ragbot/api/handlers/chat"
	ingestHandlers "ragbot/api/handlers/ingest"
	middlewarepkg "ragbot/internal/middleware"
	"ragbot/internal/rag"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Handlers 聚合所有 HTTP Handler
type Handlers struct {
	Chat   *chatHandlers.ChatHandler
	Ingest *ingestHandlers.IngestHandler
}

// RegisterRoutes 注册所有 API 路由
func RegisterRoutes(router *gin.Engine, db *gorm.DB, store rag.VectorStore, limiter *middlewarepkg.RateLimiter, h *Handlers) {
	// 系统端点（公开，不走业务中间件）
	router.GET("/api/health", HealthCheck(store))
	router.GET("/ready", ReadinessCheck(db, store))

	// Prometheus 指标端点
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(middlewarepkg.RateLimitMiddleware(limiter))
	registerChatRoutes(api, h)
	registerIngestRoutes(api, h)
}

// registerChatRoutes 注册问答路由
func registerChatRoutes(apiGroup *gin.RouterGroup, h *Handlers) {
	apiGroup.POST("/chat", h.Chat.Chat)
}

// registerIngestRoutes 注册文档注入与索引路由
func registerIngestRoutes(apiGroup *gin.RouterGroup, h *Handlers) {
	apiGroup.POST("/ingest", h.Ingest.Create)

	jobs := apiGroup.Group("/ingest/jobs")
	{
		jobs.GET("", h.Ingest.ListJobs)
		jobs.GET("/:id", h.Ingest.GetJob)
	}

	// 索引统计
	apiGroup.GET("/index/stats", h.Ingest.IndexStats)
}
