package rag

import (
	"context"
	"time"

	"ragbot/internal/metrics"
)

// VectorRecord 描述一条需要写入向量库的知识片段。
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// QueryMatch 描述一次相似度检索的返回结果。
type QueryMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Text 返回匹配片段的原文，元数据缺失时返回空串。
func (m *QueryMatch) Text() string {
	if m.Metadata == nil {
		return ""
	}
	if text, ok := m.Metadata["text"].(string); ok {
		return text
	}
	return ""
}

// IndexStats 记录索引的统计信息。
type IndexStats struct {
	Dimension        int            `json:"dimension"`
	TotalVectorCount int64          `json:"total_vector_count"`
	IndexFullness    float64        `json:"index_fullness"`
	Namespaces       map[string]int `json:"namespaces,omitempty"`
}

// VectorStore 抽象向量写入、检索与索引管理，可由不同后端实现（Pinecone、pgvector 等）。
// 索引名与命名空间在构造时绑定，调用方不感知后端细节。
type VectorStore interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, vector []float32, topK int) ([]QueryMatch, error)
	DeleteIndex(ctx context.Context) error
	Stats(ctx context.Context) (*IndexStats, error)
}

// observeStoreOp 统一记录向量库操作的计数与耗时
func observeStoreOp(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.VectorStoreRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VectorStoreRequestsTotal.WithLabelValues(operation, "error").Inc()
		return err
	}
	metrics.VectorStoreRequestsTotal.WithLabelValues(operation, "success").Inc()
	return nil
}
