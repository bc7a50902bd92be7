package rag

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"ragbot/internal/metrics"
)

// ChatAnswer 一次问答的结果
type ChatAnswer struct {
	Answer           string   `json:"answer"`
	RetrievedContext []string `json:"retrieved_context"`
}

// Answerer RAG 问答管道：向量化问题、检索上下文、生成回答
// 检索无命中时直接返回固定回答，完全不触发生成模型
type Answerer struct {
	embedder EmbeddingProvider
	store    VectorStore
	chat     ChatProvider
	prompts  *PromptTemplates
	topK     int
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewAnswerer 创建问答管道
func NewAnswerer(embedder EmbeddingProvider, store VectorStore, chat ChatProvider, prompts *PromptTemplates, topK int, log *zap.Logger) (*Answerer, error) {
	if embedder == nil {
		return nil, fmt.Errorf("嵌入提供者不能为空")
	}
	if store == nil {
		return nil, fmt.Errorf("向量存储不能为空")
	}
	if chat == nil {
		return nil, fmt.Errorf("对话提供者不能为空")
	}
	if prompts == nil {
		prompts = DefaultPromptTemplates()
	}
	if topK <= 0 {
		topK = 5
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Answerer{
		embedder: embedder,
		store:    store,
		chat:     chat,
		prompts:  prompts,
		topK:     topK,
		logger:   log,
		tracer:   otel.Tracer("ragbot/internal/rag/answerer"),
	}, nil
}

// Answer 回答一个问题
func (a *Answerer) Answer(ctx context.Context, question string) (*ChatAnswer, error) {
	ctx, span := a.tracer.Start(ctx, "Answerer.Answer")
	defer span.End()

	start := time.Now()

	// 1. 问题向量化，单条文本一次调用
	queryVector, err := a.embedder.Embed(ctx, question)
	if err != nil {
		span.RecordError(err)
		a.observe("error", start)
		return nil, fmt.Errorf("问题向量化失败: %w", err)
	}

	// 2. 相似度检索
	matches, err := a.store.Query(ctx, queryVector, a.topK)
	if err != nil {
		span.RecordError(err)
		a.observe("error", start)
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}
	metrics.RetrievalResults.Observe(float64(len(matches)))
	span.SetAttributes(attribute.Int("matches", len(matches)))

	// 3. 组装上下文，跳过缺失原文的匹配
	contexts := make([]string, 0, len(matches))
	for _, m := range matches {
		if text := m.Text(); text != "" {
			contexts = append(contexts, text)
		}
	}

	// 4. 无可用上下文时返回固定回答
	if len(contexts) == 0 {
		a.logger.Info("未检索到相关内容", zap.Int("matches", len(matches)))
		a.observe("no_context", start)
		return &ChatAnswer{
			Answer:           a.prompts.NoContextAnswer,
			RetrievedContext: []string{},
		}, nil
	}

	// 5. 生成回答，temperature 取 0 保证尽量确定
	systemPrompt := a.prompts.BuildSystemPrompt(contexts)
	answer, err := a.chat.Complete(ctx, systemPrompt, question, 0)
	if err != nil {
		span.RecordError(err)
		a.observe("error", start)
		return nil, fmt.Errorf("生成回答失败: %w", err)
	}

	a.observe("answered", start)
	a.logger.Info("问答完成",
		zap.Int("context_count", len(contexts)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &ChatAnswer{
		Answer:           answer,
		RetrievedContext: contexts,
	}, nil
}

func (a *Answerer) observe(status string, start time.Time) {
	metrics.ChatRequestsTotal.WithLabelValues(status).Inc()
	metrics.ChatRequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}
