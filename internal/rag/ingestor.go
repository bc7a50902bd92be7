package rag

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ragbot/internal/chunker"
	"ragbot/internal/metrics"
)

// IngestorConfig 注入管道的运行参数
type IngestorConfig struct {
	BatchSize int           // 每批提交的分块数，默认 10
	Pacing    time.Duration // 批次之间的最小间隔，默认 500ms，防止触发限流
	Settle    time.Duration // 删除索引后重建前的等待时间，默认 10s
}

// IngestOptions 单次注入请求的选项
type IngestOptions struct {
	SourceName string // 来源标识，仅用于日志
	Reset      bool   // 注入前删除并重建索引
}

// IngestResult 注入结果统计
type IngestResult struct {
	ChunkCount  int           `json:"chunk_count"`
	VectorCount int           `json:"vector_count"`
	Elapsed     time.Duration `json:"-"`
}

// Ingestor 文档注入管道：分块、批量向量化、写入向量库
// 每个批次只调用一次嵌入接口，写入失败立即中止，已写入的批次不回滚，
// 记录 ID 由全局分块序号决定，重跑同一文档会覆盖而不是累积
type Ingestor struct {
	chunker   *chunker.Chunker
	embedder  EmbeddingProvider
	store     VectorStore
	batchSize int
	limiter   *rate.Limiter
	settle    time.Duration
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewIngestor 创建注入管道
func NewIngestor(ck *chunker.Chunker, embedder EmbeddingProvider, store VectorStore, cfg IngestorConfig, log *zap.Logger) (*Ingestor, error) {
	if ck == nil {
		return nil, fmt.Errorf("分块器不能为空")
	}
	if embedder == nil {
		return nil, fmt.Errorf("嵌入提供者不能为空")
	}
	if store == nil {
		return nil, fmt.Errorf("向量存储不能为空")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	pacing := cfg.Pacing
	if pacing <= 0 {
		pacing = 500 * time.Millisecond
	}
	settle := cfg.Settle
	if settle <= 0 {
		settle = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Ingestor{
		chunker:   ck,
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Every(pacing), 1),
		settle:    settle,
		logger:    log,
		tracer:    otel.Tracer("ragbot/internal/rag/ingestor"),
	}, nil
}

// Ingest 执行一次完整注入
func (ing *Ingestor) Ingest(ctx context.Context, text string, opts IngestOptions) (*IngestResult, error) {
	ctx, span := ing.tracer.Start(ctx, "Ingestor.Ingest")
	defer span.End()

	start := time.Now()
	span.SetAttributes(
		attribute.String("source", opts.SourceName),
		attribute.Bool("reset", opts.Reset),
	)

	if opts.Reset {
		if err := ing.Reset(ctx); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	// 1. 分块
	ing.logger.Info("开始文本分块",
		zap.String("source", opts.SourceName),
		zap.Int("max_tokens", ing.chunker.MaxTokens()),
		zap.Int("overlap", ing.chunker.Overlap()),
	)
	chunks := ing.chunker.Split(text)
	if len(chunks) == 0 {
		ing.logger.Warn("文本为空，未产生任何分块", zap.String("source", opts.SourceName))
		return &IngestResult{Elapsed: time.Since(start)}, nil
	}
	ing.logger.Info("文本分块完成", zap.Int("chunks", len(chunks)))
	span.SetAttributes(attribute.Int("chunks", len(chunks)))

	// 2. 确保索引可用
	if err := ing.store.EnsureIndex(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("准备索引失败: %w", err)
	}

	// 3. 分批向量化并写入，批次之间按 Pacing 节流
	total := 0
	for i := 0; i < len(chunks); i += ing.batchSize {
		if err := ing.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			return nil, err
		}

		end := i + ing.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		embeddings, err := ing.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("向量化批次 %d-%d 失败: %w", i, end, err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("向量数量不匹配: 期望 %d 实际 %d", len(batch), len(embeddings))
		}

		records := make([]VectorRecord, len(batch))
		for j, c := range batch {
			records[j] = VectorRecord{
				ID:     fmt.Sprintf("chunk_%d", i+j),
				Values: embeddings[j],
				Metadata: map[string]any{
					"text":     c.Text,
					"chunk_id": i + j,
				},
			}
		}

		if err := ing.store.Upsert(ctx, records); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("写入批次 %d-%d 失败: %w", i, end, err)
		}

		total += len(records)
		metrics.IngestBatchesTotal.Inc()
		metrics.IngestedVectorsTotal.Add(float64(len(records)))
		ing.logger.Debug("批次写入完成",
			zap.Int("batch_start", i),
			zap.Int("batch_end", end),
			zap.Int("total", total),
		)
	}

	elapsed := time.Since(start)
	metrics.IngestDuration.Observe(elapsed.Seconds())
	ing.logger.Info("注入完成",
		zap.String("source", opts.SourceName),
		zap.Int("chunks", len(chunks)),
		zap.Int("vectors", total),
		zap.Duration("elapsed", elapsed),
	)

	return &IngestResult{
		ChunkCount:  len(chunks),
		VectorCount: total,
		Elapsed:     elapsed,
	}, nil
}

// Reset 删除并重建索引
// 删除在服务端异步生效，等待 settle 时间后再重建
func (ing *Ingestor) Reset(ctx context.Context) error {
	ctx, span := ing.tracer.Start(ctx, "Ingestor.Reset")
	defer span.End()

	ing.logger.Info("删除现有索引")
	if err := ing.store.DeleteIndex(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("删除索引失败: %w", err)
	}

	ing.logger.Info("等待索引删除生效", zap.Duration("settle", ing.settle))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(ing.settle):
	}

	if err := ing.store.EnsureIndex(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("重建索引失败: %w", err)
	}
	return nil
}
