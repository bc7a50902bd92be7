package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeTempConfig(t, `
server:
  port: 9000
openai:
  api_key: sk-test
rag:
  chunk:
    max_tokens: 400
    overlap_tokens: 40
  vector_store:
    type: pinecone
    pinecone:
      api_key: pc-test
      index_name: my-index
`)

	cfg, err := Load("test", path)
	require.NoError(t, err)

	if cfg.Server.Port != 9000 {
		t.Fatalf("端口应为 9000, 实际 %d", cfg.Server.Port)
	}
	if cfg.RAG.Chunk.MaxTokens != 400 || cfg.RAG.Chunk.OverlapTokens != 40 {
		t.Fatalf("分块参数解析错误: %+v", cfg.RAG.Chunk)
	}
	if cfg.RAG.VectorStore.Pinecone.IndexName != "my-index" {
		t.Fatalf("索引名应为 my-index, 实际 %s", cfg.RAG.VectorStore.Pinecone.IndexName)
	}
	// 未显式配置的项应回填默认值
	if cfg.RAG.Ingest.BatchSize != 10 {
		t.Fatalf("batch_size 默认值应为 10, 实际 %d", cfg.RAG.Ingest.BatchSize)
	}
	if cfg.OpenAI.EmbeddingModel != "text-embedding-3-small" {
		t.Fatalf("默认向量模型错误: %s", cfg.OpenAI.EmbeddingModel)
	}
}

func TestLoadLegacyEnvFallback(t *testing.T) {
	path := writeTempConfig(t, `
rag:
  vector_store:
    type: pinecone
`)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("PINECONE_API_KEY", "pc-from-env")
	t.Setenv("PINECONE_INDEX_NAME", "env-index")

	cfg, err := Load("test", path)
	require.NoError(t, err)

	if cfg.OpenAI.APIKey != "sk-from-env" {
		t.Fatalf("应从环境变量读取 OPENAI_API_KEY")
	}
	if cfg.RAG.VectorStore.Pinecone.APIKey != "pc-from-env" {
		t.Fatalf("应从环境变量读取 PINECONE_API_KEY")
	}
	if cfg.RAG.VectorStore.Pinecone.IndexName != "env-index" {
		t.Fatalf("PINECONE_INDEX_NAME 应覆盖默认索引名")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			OpenAI: OpenAIConfig{APIKey: "sk-test"},
			RAG: RAGConfig{
				Chunk:  ChunkConfig{MaxTokens: 500, OverlapTokens: 50},
				Ingest: IngestConfig{BatchSize: 10},
				Query:  QueryConfig{TopK: 5},
				VectorStore: VectorStoreConfig{
					Type:     "pinecone",
					Pinecone: PineconeConfig{APIKey: "pc-test"},
				},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"合法配置", func(c *Config) {}, false},
		{"缺少 OpenAI 密钥", func(c *Config) { c.OpenAI.APIKey = "" }, true},
		{"缺少 Pinecone 密钥", func(c *Config) { c.RAG.VectorStore.Pinecone.APIKey = "" }, true},
		{"pgvector 无需密钥", func(c *Config) {
			c.RAG.VectorStore.Type = "pgvector"
			c.RAG.VectorStore.Pinecone.APIKey = ""
			c.Database.Driver = "postgres"
		}, false},
		{"pgvector 要求 postgres 驱动", func(c *Config) {
			c.RAG.VectorStore.Type = "pgvector"
			c.Database.Driver = "sqlite"
		}, true},
		{"未知向量存储类型", func(c *Config) { c.RAG.VectorStore.Type = "chroma" }, true},
		{"max_tokens 为零", func(c *Config) { c.RAG.Chunk.MaxTokens = 0 }, true},
		{"overlap 为负", func(c *Config) { c.RAG.Chunk.OverlapTokens = -1 }, true},
		{"overlap 等于 max", func(c *Config) { c.RAG.Chunk.OverlapTokens = 500 }, true},
		{"overlap 大于 max", func(c *Config) { c.RAG.Chunk.OverlapTokens = 600 }, true},
		{"batch_size 为零", func(c *Config) { c.RAG.Ingest.BatchSize = 0 }, true},
		{"top_k 为零", func(c *Config) { c.RAG.Query.TopK = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
