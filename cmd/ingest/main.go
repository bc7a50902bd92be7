package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"ragbot/internal/chunker"
	"ragbot/internal/config"
	"ragbot/internal/infra"
	"ragbot/internal/logger"
	"ragbot/internal/parsers"
	"ragbot/internal/rag"
	"ragbot/internal/tokenizer"

	"github.com/joho/godotenv"
)

func main() {
	filePath := flag.String("file", "", "要注入的文档路径 (.txt/.md/.pdf)")
	chunkSize := flag.Int("chunk-size", 0, "单块 Token 上限，0 表示取配置 rag.chunk.max_tokens")
	overlap := flag.Int("overlap", -1, "相邻块重叠 Token 数，负值表示取配置 rag.chunk.overlap_tokens")
	batchSize := flag.Int("batch-size", 0, "每批向量化的分块数，0 表示取配置 rag.ingest.batch_size")
	reset := flag.Bool("reset", false, "注入前删除并重建索引")
	env := flag.String("env", "dev", "配置环境 dev/prod/test")
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" {
		flag.Usage()
		log.Fatal("缺少 -file 参数")
	}

	// .env 可选，找不到时静默跳过
	_ = godotenv.Load()

	cfg, err := config.Load(*env, "")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Sync()

	// 1. 解析文档
	text, err := parsers.NewRegistry().ParseFile(*filePath)
	if err != nil {
		log.Fatalf("解析文档失败: %v", err)
	}
	fmt.Printf("已解析 %s，共 %d 字符\n", *filePath, len(text))

	// 2. 命令行参数优先，缺省回落到配置
	maxTokens := *chunkSize
	if maxTokens <= 0 {
		maxTokens = cfg.RAG.Chunk.MaxTokens
	}
	overlapTokens := *overlap
	if overlapTokens < 0 {
		overlapTokens = cfg.RAG.Chunk.OverlapTokens
	}
	batch := *batchSize
	if batch <= 0 {
		batch = cfg.RAG.Ingest.BatchSize
	}

	// 3. 组装注入流水线
	codec, err := tokenizer.New(cfg.OpenAI.EmbeddingModel, logger.Get())
	if err != nil {
		log.Fatalf("初始化 tokenizer 失败: %v", err)
	}
	ck, err := chunker.NewChunker(codec, maxTokens, overlapTokens)
	if err != nil {
		log.Fatalf("初始化分块器失败: %v", err)
	}

	embedder := rag.NewOpenAIEmbeddingProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.MaxRetries)

	store, err := buildVectorStore(cfg)
	if err != nil {
		log.Fatalf("初始化向量存储失败: %v", err)
	}

	ingestor, err := rag.NewIngestor(ck, embedder, store, rag.IngestorConfig{
		BatchSize: batch,
		Pacing:    time.Duration(cfg.RAG.Ingest.PacingMillis) * time.Millisecond,
		Settle:    time.Duration(cfg.RAG.Ingest.SettleSeconds) * time.Second,
	}, logger.Get())
	if err != nil {
		log.Fatalf("初始化注入器失败: %v", err)
	}

	// 4. 同步执行注入
	ctx := context.Background()
	result, err := ingestor.Ingest(ctx, text, rag.IngestOptions{
		SourceName: *filePath,
		Reset:      *reset,
	})
	if err != nil {
		log.Fatalf("注入失败: %v", err)
	}

	fmt.Printf("注入完成: %d 个分块, %d 条向量, 耗时 %s\n",
		result.ChunkCount, result.VectorCount, result.Elapsed.Round(time.Millisecond))

	// 5. 打印索引统计
	stats, err := store.Stats(ctx)
	if err != nil {
		log.Fatalf("获取索引统计失败: %v", err)
	}
	fmt.Printf("索引统计: 共 %d 条向量, 维度 %d\n", stats.TotalVectorCount, stats.Dimension)
}

// buildVectorStore 按配置初始化向量存储，pgvector 需要先连接数据库
func buildVectorStore(cfg *config.Config) (rag.VectorStore, error) {
	vs := cfg.RAG.VectorStore

	switch strings.ToLower(strings.TrimSpace(vs.Type)) {
	case "", "pinecone":
		pc := vs.Pinecone
		return rag.NewPineconeStore(rag.PineconeOptions{
			APIKey:          pc.APIKey,
			IndexName:       pc.IndexName,
			Cloud:           pc.Cloud,
			Region:          pc.Region,
			Metric:          pc.Metric,
			Dimension:       vs.Dimension,
			Namespace:       vs.Namespace,
			ControlPlaneURL: pc.ControlPlaneURL,
			IndexHost:       pc.IndexHost,
			TimeoutSeconds:  pc.TimeoutSeconds,
		})
	case "pgvector":
		db, err := infra.InitDatabase(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("初始化数据库失败: %w", err)
		}
		return rag.NewPGVectorStore(db, vs.Namespace, vs.Dimension)
	default:
		return nil, fmt.Errorf("不支持的向量存储类型 %q", vs.Type)
	}
}
