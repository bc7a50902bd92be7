package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatLog 问答请求留痕
// 写入失败只记日志不阻断问答主链路
type ChatLog struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Question     string    `gorm:"type:text;not null" json:"question"`
	Answer       string    `gorm:"type:text" json:"answer"`
	ContextCount int       `gorm:"type:int;default:0" json:"context_count"` // 检索命中的片段数
	LatencyMs    int64     `gorm:"type:bigint;default:0" json:"latency_ms"`
	Model        string    `gorm:"type:varchar(100)" json:"model"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (l *ChatLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	return nil
}

// TableName 指定表名
func (ChatLog) TableName() string {
	return "chat_logs"
}
