package rag

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// newOpenAIClient 构建底层客户端，baseURL 支持自建网关或代理
func newOpenAIClient(apiKey, baseURL, orgID string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if orgID != "" {
		cfg.OrgID = orgID
	}
	return openai.NewClientWithConfig(cfg)
}

// isRetryableError 判断 OpenAI 调用失败是否值得重试
// 限流与服务端错误可重试，鉴权和参数类错误重试也没用
func isRetryableError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}

	// 非 API 错误按传输层故障处理
	msg := err.Error()
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection")
}
