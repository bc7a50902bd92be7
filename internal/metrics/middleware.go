package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// PrometheusMiddleware 按路由模板维度记录 QPS、延迟与请求响应大小
// 标签用 c.FullPath() 而不是原始 URL，避免 /jobs/:id 这类路径把基数打爆
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// /metrics 自身不计入，防止自我观测噪音
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			// 未匹配到路由（404），统一归并
			route = "unmatched"
		}
		method := c.Request.Method

		APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		APIRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

		if size := c.Request.ContentLength; size > 0 {
			APIRequestSize.WithLabelValues(method, route).Observe(float64(size))
		}
		if size := c.Writer.Size(); size >= 0 {
			APIResponseSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}
