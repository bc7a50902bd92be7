package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	RAG      RAGConfig      `mapstructure:"rag"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
// Driver 为 postgres 时使用 Host/Port/User 等字段，为 sqlite 时使用 Path
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"` // sqlite 文件路径
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
}

// RedisConfig Redis 配置（任务队列与向量缓存共用）
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// OpenAIConfig OpenAI 配置，覆盖向量化与对话两类模型
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	OrgID          string `mapstructure:"org_id"`
	MaxRetries     int    `mapstructure:"max_retries"`
	EmbeddingModel string `mapstructure:"embedding_model"` // text-embedding-3-small
	ChatModel      string `mapstructure:"chat_model"`      // gpt-4o
}

// RAGConfig RAG 流水线配置
type RAGConfig struct {
	Chunk       ChunkConfig       `mapstructure:"chunk"`
	Ingest      IngestConfig      `mapstructure:"ingest"`
	Query       QueryConfig       `mapstructure:"query"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	PromptFile  string            `mapstructure:"prompt_file"` // 可选的提示词模板文件
}

// ChunkConfig 分块参数
type ChunkConfig struct {
	MaxTokens     int `mapstructure:"max_tokens"`     // 单块 Token 上限
	OverlapTokens int `mapstructure:"overlap_tokens"` // 相邻块重叠 Token 数
}

// IngestConfig 入库参数
type IngestConfig struct {
	BatchSize     int `mapstructure:"batch_size"`     // 每批向量化的分块数
	PacingMillis  int `mapstructure:"pacing_ms"`      // 批次之间的限速间隔
	SettleSeconds int `mapstructure:"settle_seconds"` // 索引重建后的等待时间
}

// QueryConfig 检索参数
type QueryConfig struct {
	TopK int `mapstructure:"top_k"`
}

// VectorStoreConfig 向量存储配置
// Namespace 与 Dimension 为后端无关参数，pinecone 与 pgvector 共用
type VectorStoreConfig struct {
	Type      string         `mapstructure:"type"` // pinecone, pgvector
	Namespace string         `mapstructure:"namespace"`
	Dimension int            `mapstructure:"dimension"`
	Pinecone  PineconeConfig `mapstructure:"pinecone"`
}

// PineconeConfig Pinecone Serverless 索引配置
type PineconeConfig struct {
	APIKey          string `mapstructure:"api_key"`
	IndexName       string `mapstructure:"index_name"`
	Cloud           string `mapstructure:"cloud"`
	Region          string `mapstructure:"region"`
	Metric          string `mapstructure:"metric"`
	ControlPlaneURL string `mapstructure:"control_plane_url"` // 默认官方控制面，可指向本地模拟
	IndexHost       string `mapstructure:"index_host"`        // 指定后跳过控制面解析
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
// 配置文件可以缺省，此时仅使用默认值与环境变量
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP") // 环境变量前缀：APP_
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_OPENAI_API_KEY

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyLegacyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// setDefaults 设置各项默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "ragbot.db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("openai.max_retries", 3)
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.chat_model", "gpt-4o")

	v.SetDefault("rag.chunk.max_tokens", 500)
	v.SetDefault("rag.chunk.overlap_tokens", 50)
	v.SetDefault("rag.ingest.batch_size", 10)
	v.SetDefault("rag.ingest.pacing_ms", 500)
	v.SetDefault("rag.ingest.settle_seconds", 10)
	v.SetDefault("rag.query.top_k", 5)
	v.SetDefault("rag.vector_store.type", "pinecone")
	v.SetDefault("rag.vector_store.dimension", 1536)
	v.SetDefault("rag.vector_store.pinecone.index_name", "rag-chatbot")
	v.SetDefault("rag.vector_store.pinecone.cloud", "aws")
	v.SetDefault("rag.vector_store.pinecone.region", "us-east-1")
	v.SetDefault("rag.vector_store.pinecone.metric", "cosine")
	v.SetDefault("rag.vector_store.pinecone.timeout_seconds", 30)
}

// applyLegacyEnv 兼容无前缀的传统环境变量（.env 里通常是这些名字）
func applyLegacyEnv(cfg *Config) {
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" && cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = key
	}
	if key := strings.TrimSpace(os.Getenv("PINECONE_API_KEY")); key != "" && cfg.RAG.VectorStore.Pinecone.APIKey == "" {
		cfg.RAG.VectorStore.Pinecone.APIKey = key
	}
	if name := strings.TrimSpace(os.Getenv("PINECONE_INDEX_NAME")); name != "" {
		cfg.RAG.VectorStore.Pinecone.IndexName = name
	}
}

// Validate 校验配置，缺失关键项时立即失败
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return fmt.Errorf("缺少 OPENAI_API_KEY 配置")
	}

	vsType := strings.ToLower(strings.TrimSpace(c.RAG.VectorStore.Type))
	switch vsType {
	case "pinecone":
		if strings.TrimSpace(c.RAG.VectorStore.Pinecone.APIKey) == "" {
			return fmt.Errorf("缺少 PINECONE_API_KEY 配置")
		}
	case "pgvector":
		// pgvector 复用数据库连接，无独立密钥，但要求 postgres 驱动
		if !strings.EqualFold(strings.TrimSpace(c.Database.Driver), "postgres") {
			return fmt.Errorf("pgvector 存储要求 database.driver 为 postgres, 实际 %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("不支持的向量存储类型: %s (可选: pinecone, pgvector)", c.RAG.VectorStore.Type)
	}

	if c.RAG.Chunk.MaxTokens <= 0 {
		return fmt.Errorf("分块参数非法: max_tokens 必须大于 0, 实际 %d", c.RAG.Chunk.MaxTokens)
	}
	if c.RAG.Chunk.OverlapTokens < 0 {
		return fmt.Errorf("分块参数非法: overlap_tokens 不能为负, 实际 %d", c.RAG.Chunk.OverlapTokens)
	}
	if c.RAG.Chunk.OverlapTokens >= c.RAG.Chunk.MaxTokens {
		return fmt.Errorf("分块参数非法: overlap_tokens(%d) 必须小于 max_tokens(%d)",
			c.RAG.Chunk.OverlapTokens, c.RAG.Chunk.MaxTokens)
	}
	if c.RAG.Ingest.BatchSize <= 0 {
		return fmt.Errorf("入库参数非法: batch_size 必须大于 0, 实际 %d", c.RAG.Ingest.BatchSize)
	}
	if c.RAG.Query.TopK <= 0 {
		return fmt.Errorf("检索参数非法: top_k 必须大于 0, 实际 %d", c.RAG.Query.TopK)
	}

	return nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
