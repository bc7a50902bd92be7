package api

import (
	"fmt"
	"strings"

	"ragbot/internal/config"
	"ragbot/internal/infra"
	"ragbot/internal/logger"
	"ragbot/internal/rag"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ReadinessResponse 就绪检查响应
type ReadinessResponse struct {
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Database string `json:"database,omitempty"`
}

// HealthCheck 健康检查
// 始终返回 200，探测结果放在 status/message 字段里，
// 监控方以响应体而非状态码判断向量索引是否可达
// @Summary 服务健康检查
// @Description 探测向量存储连通性，始终返回 200
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /api/health [get]
func HealthCheck(store rag.VectorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := store.Stats(c.Request.Context()); err != nil {
			logger.Get().Warn("健康检查失败", zap.Error(err))
			c.JSON(200, HealthResponse{
				Status:  "error",
				Message: "Service health check failed: " + err.Error(),
			})
			return
		}

		c.JSON(200, HealthResponse{
			Status:  "ok",
			Message: "Service is healthy",
		})
	}
}

// ReadinessCheck 就绪检查
// 任一依赖(数据库/Redis/向量存储)不可用即返回 503，供负载均衡摘流
// @Summary 服务就绪检查
// @Description 检查数据库、Redis 与向量存储连通性
// @Tags System
// @Produce json
// @Success 200 {object} ReadinessResponse
// @Failure 503 {object} ReadinessResponse
// @Router /ready [get]
func ReadinessCheck(db *gorm.DB, store rag.VectorStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(503, ReadinessResponse{
				Status: "not_ready",
				Reason: "database connection error",
			})
			return
		}

		if err := sqlDB.Ping(); err != nil {
			c.JSON(503, ReadinessResponse{
				Status: "not_ready",
				Reason: "database ping failed",
			})
			return
		}

		if err := infra.HealthCheckRedis(); err != nil {
			c.JSON(503, ReadinessResponse{
				Status: "not_ready",
				Reason: "redis unavailable",
			})
			return
		}

		if _, err := store.Stats(c.Request.Context()); err != nil {
			c.JSON(503, ReadinessResponse{
				Status: "not_ready",
				Reason: "vector store unavailable",
			})
			return
		}

		c.JSON(200, ReadinessResponse{
			Status:   "ready",
			Database: "connected",
		})
	}
}

// initVectorStore 按配置初始化向量存储，默认 Pinecone
func initVectorStore(cfg *config.Config, db *gorm.DB) (rag.VectorStore, error) {
	vs := cfg.RAG.VectorStore

	switch strings.ToLower(strings.TrimSpace(vs.Type)) {
	case "", "pinecone":
		pc := vs.Pinecone
		return rag.NewPineconeStore(rag.PineconeOptions{
			APIKey:          pc.APIKey,
			IndexName:       pc.IndexName,
			Cloud:           pc.Cloud,
			Region:          pc.Region,
			Metric:          pc.Metric,
			Dimension:       vs.Dimension,
			Namespace:       vs.Namespace,
			ControlPlaneURL: pc.ControlPlaneURL,
			IndexHost:       pc.IndexHost,
			TimeoutSeconds:  pc.TimeoutSeconds,
		})
	case "pgvector":
		return rag.NewPGVectorStore(db, vs.Namespace, vs.Dimension)
	default:
		return nil, fmt.Errorf("不支持的向量存储类型 %q", vs.Type)
	}
}
