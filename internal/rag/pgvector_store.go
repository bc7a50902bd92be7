package rag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ragbot/internal/models"
)

// PGVectorStore 基于PostgreSQL pgvector扩展的向量存储实现
// 行为与 Pinecone 后端对齐：同 ID 覆盖写入、余弦相似度检索
// 数据源必须是 PostgreSQL，sqlite 不支持 vector 扩展
type PGVectorStore struct {
	db        *gorm.DB
	namespace string
	dimension int
}

// NewPGVectorStore 创建 pgvector 存储实例
func NewPGVectorStore(db *gorm.DB, namespace string, dimension int) (*PGVectorStore, error) {
	if db == nil {
		return nil, fmt.Errorf("数据库连接不能为空")
	}
	if dimension <= 0 {
		dimension = 1536
	}

	store := &PGVectorStore{
		db:        db,
		namespace: namespace,
		dimension: dimension,
	}

	if err := store.EnsureIndex(context.Background()); err != nil {
		return nil, err
	}

	return store, nil
}

// EnsureIndex 启用 pgvector 扩展并确保向量表存在
func (s *PGVectorStore) EnsureIndex(ctx context.Context) error {
	return observeStoreOp("create_index", func() error {
		if err := s.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("确保pgvector扩展失败: %w", err)
		}
		if err := s.db.WithContext(ctx).AutoMigrate(&models.VectorChunk{}); err != nil {
			return fmt.Errorf("创建向量表失败: %w", err)
		}
		return nil
	})
}

// Upsert 批量写入向量，同 ID 直接覆盖
func (s *PGVectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]models.VectorChunk, 0, len(records))
	for _, rec := range records {
		if len(rec.Values) != s.dimension {
			return fmt.Errorf("向量维度不匹配: 期望 %d 实际 %d", s.dimension, len(rec.Values))
		}

		row := models.VectorChunk{
			ID:         rec.ID,
			Namespace:  s.namespace,
			Text:       textFromMetadata(rec.Metadata),
			ChunkIndex: chunkIndexFromMetadata(rec.Metadata),
			Embedding:  pgvector.NewVector(rec.Values),
		}
		if rec.Metadata != nil {
			buf, err := json.Marshal(rec.Metadata)
			if err != nil {
				return fmt.Errorf("序列化元数据失败: %w", err)
			}
			row.Metadata = datatypes.JSON(buf)
		}
		rows = append(rows, row)
	}

	return observeStoreOp("upsert", func() error {
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"namespace", "text", "chunk_index", "embedding", "metadata", "updated_at"}),
		}).Create(&rows).Error
		if err != nil {
			return fmt.Errorf("写入向量失败: %w", err)
		}
		return nil
	})
}

// Query 执行余弦相似度检索
// <=> 是 pgvector 的余弦距离操作符，1 - 距离即余弦相似度
func (s *PGVectorStore) Query(ctx context.Context, vector []float32, topK int) ([]QueryMatch, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("查询向量不能为空")
	}
	if topK <= 0 {
		topK = 5
	}

	query := `
		SELECT
			id,
			metadata,
			1 - (embedding <=> ?) AS similarity
		FROM vector_chunks
		WHERE namespace = ?
		ORDER BY embedding <=> ?
		LIMIT ?
	`

	var rows []struct {
		ID         string         `gorm:"column:id"`
		Metadata   datatypes.JSON `gorm:"column:metadata"`
		Similarity float64        `gorm:"column:similarity"`
	}

	queryVec := pgvector.NewVector(vector)
	err := observeStoreOp("query", func() error {
		if err := s.db.WithContext(ctx).Raw(query, queryVec, s.namespace, queryVec, topK).Scan(&rows).Error; err != nil {
			return fmt.Errorf("向量检索失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	matches := make([]QueryMatch, 0, len(rows))
	for _, r := range rows {
		var metadata map[string]any
		if len(r.Metadata) > 0 {
			_ = json.Unmarshal(r.Metadata, &metadata)
		}
		matches = append(matches, QueryMatch{
			ID:       r.ID,
			Score:    r.Similarity,
			Metadata: metadata,
		})
	}
	return matches, nil
}

// DeleteIndex 清空当前命名空间下的全部向量
func (s *PGVectorStore) DeleteIndex(ctx context.Context) error {
	return observeStoreOp("delete_index", func() error {
		if err := s.db.WithContext(ctx).
			Where("namespace = ?", s.namespace).
			Delete(&models.VectorChunk{}).Error; err != nil {
			return fmt.Errorf("清空向量表失败: %w", err)
		}
		return nil
	})
}

// Stats 按命名空间统计向量数量
func (s *PGVectorStore) Stats(ctx context.Context) (*IndexStats, error) {
	var rows []struct {
		Namespace string `gorm:"column:namespace"`
		Count     int64  `gorm:"column:count"`
	}

	err := observeStoreOp("stats", func() error {
		if err := s.db.WithContext(ctx).
			Model(&models.VectorChunk{}).
			Select("namespace, COUNT(*) AS count").
			Group("namespace").
			Scan(&rows).Error; err != nil {
			return fmt.Errorf("统计向量失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats := &IndexStats{
		Dimension:  s.dimension,
		Namespaces: make(map[string]int, len(rows)),
	}
	for _, r := range rows {
		stats.Namespaces[r.Namespace] = int(r.Count)
		stats.TotalVectorCount += r.Count
	}
	return stats, nil
}

func textFromMetadata(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	if text, ok := metadata["text"].(string); ok {
		return text
	}
	return ""
}

func chunkIndexFromMetadata(metadata map[string]any) int {
	if metadata == nil {
		return 0
	}
	return toInt(metadata["chunk_id"])
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float32:
		return int(n)
	case float64:
		return int(n)
	case string:
		var iv int
		fmt.Sscanf(n, "%d", &iv)
		return iv
	default:
		return 0
	}
}
