package rag

import "context"

// EmbeddingProvider 抽象不同向量模型/服务的统一接口。
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	GetModel() string
	GetProviderName() string
	GetDimension() int
}

// ChatProvider 抽象问答生成模型的统一接口。
type ChatProvider interface {
	Complete(ctx context.Context, systemPrompt, userMessage string, temperature float32) (string, error)
	GetModel() string
}
