package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 注入任务状态
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// IngestionJob 异步文档注入任务
// 记录一次文档入库请求的全部参数与执行进度，文本原文保存在任务行内，
// Worker 凭任务 ID 即可完整重放
type IngestionJob struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	SourceName   string         `gorm:"type:varchar(500)" json:"source_name"` // 来源（文件名、接口调用方等）
	Text         string         `gorm:"type:text;not null" json:"-"`
	CharCount    int            `gorm:"type:int;default:0" json:"char_count"`
	ChunkSize    int            `gorm:"type:int;not null" json:"chunk_size"`
	ChunkOverlap int            `gorm:"type:int;not null" json:"chunk_overlap"`
	BatchSize    int            `gorm:"type:int;not null" json:"batch_size"`
	Reset        bool           `gorm:"column:reset_index;not null;default:false" json:"reset"` // 注入前是否清空并重建索引
	Status       string         `gorm:"type:varchar(50);not null;default:'pending';index:idx_job_status" json:"status"`
	ChunkCount   int            `gorm:"type:int;default:0" json:"chunk_count"`
	VectorCount  int            `gorm:"type:int;default:0" json:"vector_count"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	Params       datatypes.JSON `gorm:"type:jsonb" json:"params,omitempty"` // 额外参数（解析器类型等）
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (j *IngestionJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = time.Now()
	}
	return nil
}

// BeforeUpdate GORM 钩子：更新前设置时间
func (j *IngestionJob) BeforeUpdate(tx *gorm.DB) error {
	j.UpdatedAt = time.Now()
	return nil
}

// TableName 指定表名
func (IngestionJob) TableName() string {
	return "ingestion_jobs"
}
