package models

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ragbot/pkg/types"
)

// IngestionJobService 注入任务的持久化服务
type IngestionJobService struct {
	db *gorm.DB
}

// NewIngestionJobService 创建 IngestionJobService 实例
func NewIngestionJobService(db *gorm.DB) *IngestionJobService {
	return &IngestionJobService{db: db}
}

// Create 创建注入任务
func (s *IngestionJobService) Create(ctx context.Context, job *IngestionJob) error {
	if job.CharCount == 0 {
		job.CharCount = len(job.Text)
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("创建注入任务失败: %w", err)
	}
	return nil
}

// Get 按 ID 查询注入任务
func (s *IngestionJobService) Get(ctx context.Context, id string) (*IngestionJob, error) {
	var job IngestionJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("查询注入任务失败: %w", err)
	}
	return &job, nil
}

// List 按创建时间倒序分页查询注入任务
func (s *IngestionJobService) List(ctx context.Context, page types.PaginationRequest) ([]IngestionJob, int64, error) {
	page.Normalize()

	var total int64
	if err := s.db.WithContext(ctx).Model(&IngestionJob{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计注入任务失败: %w", err)
	}

	var jobs []IngestionJob
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("查询注入任务列表失败: %w", err)
	}

	return jobs, total, nil
}

// MarkRunning 将任务标记为执行中
func (s *IngestionJobService) MarkRunning(ctx context.Context, id string) error {
	now := time.Now()
	return s.updateJob(ctx, id, map[string]any{
		"status":     JobStatusRunning,
		"started_at": &now,
	})
}

// MarkCompleted 将任务标记为完成并记录产出数量
func (s *IngestionJobService) MarkCompleted(ctx context.Context, id string, chunkCount, vectorCount int) error {
	now := time.Now()
	return s.updateJob(ctx, id, map[string]any{
		"status":       JobStatusCompleted,
		"chunk_count":  chunkCount,
		"vector_count": vectorCount,
		"completed_at": &now,
	})
}

// MarkFailed 将任务标记为失败并记录错误信息
func (s *IngestionJobService) MarkFailed(ctx context.Context, id string, message string) error {
	now := time.Now()
	return s.updateJob(ctx, id, map[string]any{
		"status":        JobStatusFailed,
		"error_message": message,
		"completed_at":  &now,
	})
}

func (s *IngestionJobService) updateJob(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	result := s.db.WithContext(ctx).Model(&IngestionJob{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("更新注入任务失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("更新注入任务失败: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

// ChatLogService 问答留痕的持久化服务
type ChatLogService struct {
	db *gorm.DB
}

// NewChatLogService 创建 ChatLogService 实例
func NewChatLogService(db *gorm.DB) *ChatLogService {
	return &ChatLogService{db: db}
}

// Record 写入一条问答记录
func (s *ChatLogService) Record(ctx context.Context, log *ChatLog) error {
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("写入问答记录失败: %w", err)
	}
	return nil
}

// Recent 查询最近的问答记录
func (s *ChatLogService) Recent(ctx context.Context, limit int) ([]ChatLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var logs []ChatLog
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("查询问答记录失败: %w", err)
	}
	return logs, nil
}
