package api

import (
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"ragbot/internal/logger"
	middlewarepkg "ragbot/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger 请求访问日志
// 按响应状态分级：5xx 记 Error，4xx 记 Warn，其余 Info
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", middlewarepkg.GetRequestIDFromGin(c)),
		}
		if query := c.Request.URL.RawQuery; query != "" {
			fields = append(fields, zap.String("query", query))
		}

		log := logger.Get()
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("HTTP Request", fields...)
		default:
			log.Info("HTTP Request", fields...)
		}
	}
}

// corsPolicy 启动时从环境变量算好的跨域策略，避免每个请求重复解析
type corsPolicy struct {
	origins []string
	headers string
	methods string
}

func loadCORSPolicy() corsPolicy {
	headers := splitEnvList("CORS_ALLOW_HEADERS")
	if len(headers) == 0 {
		headers = []string{
			"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization",
			"Accept", "Origin", "Cache-Control", "X-Requested-With",
		}
	}
	methods := splitEnvList("CORS_ALLOW_METHODS")
	if len(methods) == 0 {
		methods = []string{"POST", "OPTIONS", "GET", "PUT", "DELETE", "PATCH"}
	}
	return corsPolicy{
		origins: splitEnvList("CORS_ALLOW_ORIGINS"),
		headers: strings.Join(headers, ", "),
		methods: strings.Join(methods, ", "),
	}
}

// CORS 跨域中间件
// 未配置 CORS_ALLOW_ORIGINS 时放行所有来源，适合本地调试
func CORS() gin.HandlerFunc {
	policy := loadCORSPolicy()

	return func(c *gin.Context) {
		h := c.Writer.Header()

		origin := c.GetHeader("Origin")
		switch {
		case len(policy.origins) == 0:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(policy.origins, origin):
			h.Set("Access-Control-Allow-Origin", origin)
		}
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", policy.headers)
		h.Set("Access-Control-Allow-Methods", policy.methods)
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// splitEnvList 读取逗号分隔的环境变量，空段被丢弃
func splitEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
