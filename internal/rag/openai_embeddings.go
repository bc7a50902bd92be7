package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"ragbot/internal/metrics"
)

// OpenAI 嵌入接口单次请求的输入条数上限
const openaiEmbedInputLimit = 2048

// 各嵌入模型的输出维度
var embeddingDimensions = map[string]int{
	string(openai.SmallEmbedding3): 1536,
	string(openai.LargeEmbedding3): 3072,
	string(openai.AdaEmbeddingV2):  1536,
}

// OpenAIEmbeddingProvider 基于 OpenAI Embeddings API 的向量化实现
type OpenAIEmbeddingProvider struct {
	client     *openai.Client
	model      string
	maxRetries int
}

// NewOpenAIEmbeddingProvider 创建向量化提供者
// baseURL 为空时使用官方端点，model 为空时默认 text-embedding-3-small
func NewOpenAIEmbeddingProvider(apiKey, baseURL, model string, maxRetries int) *OpenAIEmbeddingProvider {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &OpenAIEmbeddingProvider{
		client:     newOpenAIClient(apiKey, baseURL, ""),
		model:      model,
		maxRetries: maxRetries,
	}
}

// Embed 单条文本向量化
func (p *OpenAIEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("文本不能为空")
	}
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("OpenAI API返回空向量")
	}
	return vectors[0], nil
}

// EmbedBatch 批量向量化，超出单次输入上限时自动分批
// 空输入直接返回，不发起网络请求
func (p *OpenAIEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openaiEmbedInputLimit {
		end := min(start+openaiEmbedInputLimit, len(texts))

		vectors, err := p.callEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("批量向量化失败(batch %d-%d): %w", start, end, err)
		}
		result = append(result, vectors...)
	}
	return result, nil
}

// callEmbeddings 发起一次嵌入请求，限流与 5xx 按指数退避重试
func (p *OpenAIEmbeddingProvider) callEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	defer func() {
		metrics.ModelCallDuration.WithLabelValues("openai", p.model).Observe(time.Since(start).Seconds())
	}()

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	}

	var resp openai.EmbeddingResponse
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = p.client.CreateEmbeddings(ctx, req)
		if err == nil {
			break
		}
		if attempt >= p.maxRetries || !isRetryableError(err) {
			metrics.ModelCallsTotal.WithLabelValues("openai", p.model, "error").Inc()
			return nil, fmt.Errorf("调用OpenAI Embeddings API失败: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(1<<uint(attempt)) * time.Second):
		}
	}
	metrics.ModelCallsTotal.WithLabelValues("openai", p.model, "success").Inc()

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI API返回向量数量不匹配: 期望%d, 实际%d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

// GetDimension 当前模型的向量维度，未知模型按 1536 处理
func (p *OpenAIEmbeddingProvider) GetDimension() int {
	if dim, ok := embeddingDimensions[p.model]; ok {
		return dim
	}
	return 1536
}

// GetModel 当前使用的模型
func (p *OpenAIEmbeddingProvider) GetModel() string {
	return p.model
}

// GetProviderName 提供商名称
func (p *OpenAIEmbeddingProvider) GetProviderName() string {
	return "openai"
}
