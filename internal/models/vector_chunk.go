package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// VectorChunk pgvector 后端的向量存储行
// 每行对应一个已向量化的文本分块，ID 与 Pinecone 后端保持同一格式(chunk_<序号>)，
// 重复写入同一 ID 时直接覆盖
type VectorChunk struct {
	ID         string          `gorm:"type:varchar(64);primaryKey" json:"id"`
	Namespace  string          `gorm:"type:varchar(128);not null;default:'';index:idx_chunk_namespace" json:"namespace"`
	Text       string          `gorm:"type:text;not null" json:"text"`
	ChunkIndex int             `gorm:"type:int;not null;default:0" json:"chunk_index"`
	Embedding  pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	Metadata   datatypes.JSON  `gorm:"type:jsonb" json:"metadata"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (VectorChunk) TableName() string {
	return "vector_chunks"
}
