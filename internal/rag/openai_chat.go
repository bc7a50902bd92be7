package rag

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"ragbot/internal/metrics"
)

// OpenAIChatProvider OpenAI对话生成服务提供者
type OpenAIChatProvider struct {
	client     *openai.Client
	model      string // 默认使用 gpt-4o
	maxRetries int
}

// NewOpenAIChatProvider 创建OpenAI对话生成提供者
func NewOpenAIChatProvider(apiKey, baseURL, model string, maxRetries int) *OpenAIChatProvider {
	if model == "" {
		model = openai.GPT4o
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &OpenAIChatProvider{
		client:     newOpenAIClient(apiKey, baseURL, ""),
		model:      model,
		maxRetries: maxRetries,
	}
}

// Complete 根据系统提示词与用户消息生成回答(非流式)
func (p *OpenAIChatProvider) Complete(ctx context.Context, systemPrompt, userMessage string, temperature float32) (string, error) {
	// go-openai 对 temperature 使用 omitempty，0 值会被序列化省略而落到服务端默认值
	// 用最小非零值近似 0，保证回答尽量确定
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: temperature,
	}

	start := time.Now()
	defer func() {
		metrics.ModelCallDuration.WithLabelValues("openai", p.model).Observe(time.Since(start).Seconds())
	}()

	// 限流与 5xx 按指数退避重试
	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = p.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}
		if attempt >= p.maxRetries || !isRetryableError(err) {
			metrics.ModelCallsTotal.WithLabelValues("openai", p.model, "error").Inc()
			return "", fmt.Errorf("调用OpenAI Chat API失败: %w", err)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(1<<uint(attempt)) * time.Second):
		}
	}
	metrics.ModelCallsTotal.WithLabelValues("openai", p.model, "success").Inc()

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API返回空响应")
	}

	return resp.Choices[0].Message.Content, nil
}

// GetModel 获取当前使用的模型
func (p *OpenAIChatProvider) GetModel() string {
	return p.model
}
