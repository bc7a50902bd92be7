package api

import (
	"time"

	chatHandlers "ragbot/api/handlers/chat"
	ingestHandlers "ragbot/api/handlers/ingest"
	"ragbot/internal/chunker"
	"ragbot/internal/config"
	"ragbot/internal/infra"
	"ragbot/internal/infra/queue"
	"ragbot/internal/logger"
	"ragbot/internal/metrics"
	middlewarepkg "ragbot/internal/middleware"
	"ragbot/internal/models"
	"ragbot/internal/rag"
	"ragbot/internal/tokenizer"
	"ragbot/internal/worker"
	workerHandlers "ragbot/internal/worker/handlers"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupRouter 组装整个 RAG 流水线并返回 Gin 路由和 Worker 服务器
// 任何组件构建失败都视为配置错误，直接终止启动
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *worker.Server) {
	router := gin.New()

	// 全局中间件，RequestID 在最前，日志里才能带上请求 ID
	router.Use(gin.Recovery())
	router.Use(middlewarepkg.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(CORS())

	// Prometheus 指标收集中间件
	router.Use(metrics.PrometheusMiddleware())

	// Tokenizer，编码按 embedding 模型解析，供 worker 分块复用
	codec, err := tokenizer.New(cfg.OpenAI.EmbeddingModel, logger.Get())
	if err != nil {
		logger.Fatal("初始化 tokenizer 失败", zap.Error(err))
	}

	// OpenAI 提供者，Embedding 外面包一层 Redis 缓存，降低重复向量化成本
	embCache := rag.NewEmbeddingCache(infra.GetRedis(), "", 0)
	var embedder rag.EmbeddingProvider = rag.NewCachedEmbeddingProvider(
		rag.NewOpenAIEmbeddingProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.MaxRetries),
		embCache,
	)
	chatProvider := rag.NewOpenAIChatProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel, cfg.OpenAI.MaxRetries)

	// 向量存储
	vectorStore, err := initVectorStore(cfg, db)
	if err != nil {
		logger.Fatal("初始化向量存储失败", zap.Error(err))
	}

	// 提示词模板
	prompts, err := rag.LoadPromptTemplates(cfg.RAG.PromptFile)
	if err != nil {
		logger.Fatal("加载提示词模板失败", zap.Error(err))
	}

	// 问答器
	answerer, err := rag.NewAnswerer(embedder, vectorStore, chatProvider, prompts, cfg.RAG.Query.TopK, logger.Get())
	if err != nil {
		logger.Fatal("初始化问答器失败", zap.Error(err))
	}

	// DB 服务与队列客户端
	jobService := models.NewIngestionJobService(db)
	chatLogService := models.NewChatLogService(db)
	queueClient := queue.NewClient(cfg.Redis)

	// HTTP Handlers
	h := &Handlers{
		Chat: chatHandlers.NewChatHandler(answerer, chatLogService, chatProvider.GetModel(), logger.Get()),
		Ingest: ingestHandlers.NewIngestHandler(jobService, queueClient, vectorStore, ingestHandlers.Defaults{
			ChunkSize:    cfg.RAG.Chunk.MaxTokens,
			ChunkOverlap: cfg.RAG.Chunk.OverlapTokens,
			BatchSize:    cfg.RAG.Ingest.BatchSize,
		}, logger.Get()),
	}

	// 业务接口统一限流，问答与注入都会触发下游 OpenAI 调用
	limiter := middlewarepkg.NewRateLimiter(nil)
	RegisterRoutes(router, db, vectorStore, limiter, h)

	// Worker 侧按任务参数构建注入器，分块参数每个任务可不同
	pacing := time.Duration(cfg.RAG.Ingest.PacingMillis) * time.Millisecond
	settle := time.Duration(cfg.RAG.Ingest.SettleSeconds) * time.Second
	ingestorFactory := func(chunkSize, overlapTokens, batchSize int) (*rag.Ingestor, error) {
		jobChunker, err := chunker.NewChunker(codec, chunkSize, overlapTokens)
		if err != nil {
			return nil, err
		}
		return rag.NewIngestor(jobChunker, embedder, vectorStore, rag.IngestorConfig{
			BatchSize: batchSize,
			Pacing:    pacing,
			Settle:    settle,
		}, logger.Get())
	}

	ingestWorker := workerHandlers.NewIngestHandler(jobService, ingestorFactory, logger.Get())
	workerServer := worker.NewServer(cfg.Redis, ingestWorker, logger.Get())

	return router, workerServer
}
