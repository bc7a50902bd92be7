package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"ragbot/internal/metrics"
	"ragbot/internal/models"
	"ragbot/internal/rag"
	"ragbot/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// IngestorFactory 按任务携带的分块参数构建注入器
type IngestorFactory func(chunkSize, overlapTokens, batchSize int) (*rag.Ingestor, error)

// IngestHandler 消费 ingest:document 任务
type IngestHandler struct {
	jobs    *models.IngestionJobService
	factory IngestorFactory
	logger  *zap.Logger
}

func NewIngestHandler(jobs *models.IngestionJobService, factory IngestorFactory, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		jobs:    jobs,
		factory: factory,
		logger:  logger,
	}
}

func (h *IngestHandler) HandleIngestDocument(ctx context.Context, t *asynq.Task) error {
	var p tasks.IngestDocumentPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("解析任务载荷失败: %v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(zap.String("job_id", p.JobID))

	job, err := h.jobs.Get(ctx, p.JobID)
	if err != nil {
		return fmt.Errorf("加载注入任务失败: %w", err)
	}

	// asynq 重复投递时跳过已完成的任务
	if job.Status == models.JobStatusCompleted {
		log.Info("任务已完成，跳过执行")
		return nil
	}

	if err := h.jobs.MarkRunning(ctx, job.ID); err != nil {
		return fmt.Errorf("更新任务状态失败: %w", err)
	}
	log.Info("注入任务开始",
		zap.String("source", job.SourceName),
		zap.Int("chunk_size", job.ChunkSize),
		zap.Int("overlap", job.ChunkOverlap),
		zap.Int("batch_size", job.BatchSize),
		zap.Bool("reset", job.Reset),
	)

	ing, err := h.factory(job.ChunkSize, job.ChunkOverlap, job.BatchSize)
	if err != nil {
		// 参数非法属于永久失败，重试无意义
		h.markFailed(ctx, log, job.ID, err)
		return fmt.Errorf("构建注入器失败: %v: %w", err, asynq.SkipRetry)
	}

	result, err := ing.Ingest(ctx, job.Text, rag.IngestOptions{
		SourceName: job.SourceName,
		Reset:      job.Reset,
	})
	if err != nil {
		h.markFailed(ctx, log, job.ID, err)
		return err
	}

	if err := h.jobs.MarkCompleted(ctx, job.ID, result.ChunkCount, result.VectorCount); err != nil {
		return fmt.Errorf("更新任务状态失败: %w", err)
	}

	metrics.IngestJobsTotal.WithLabelValues("completed").Inc()
	log.Info("注入任务完成",
		zap.Int("chunks", result.ChunkCount),
		zap.Int("vectors", result.VectorCount),
		zap.Duration("elapsed", result.Elapsed),
	)
	return nil
}

func (h *IngestHandler) markFailed(ctx context.Context, log *zap.Logger, jobID string, cause error) {
	metrics.IngestJobsTotal.WithLabelValues("failed").Inc()
	log.Error("注入任务失败", zap.Error(cause))
	if err := h.jobs.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		log.Error("记录失败状态失败", zap.Error(err))
	}
}
