package worker

import (
	"context"
	"fmt"

	"ragbot/internal/config"
	"ragbot/internal/worker/handlers"
	"ragbot/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const workerConcurrency = 10

// Server 后台任务消费端，与 HTTP 进程同生命周期运行
type Server struct {
	inner *asynq.Server
	mux   *asynq.ServeMux
	log   *zap.Logger
}

// NewServer 构建 Worker 并注册任务处理器
// 注入队列权重高于默认队列，保证大批量写入时注入任务优先被消费
func NewServer(cfg config.RedisConfig, ingestHandler *handlers.IngestHandler, log *zap.Logger) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		},
		asynq.Config{
			Concurrency: workerConcurrency,
			Queues: map[string]int{
				tasks.QueueIngest:  3,
				tasks.QueueDefault: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
				log.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeIngestDocument, ingestHandler.HandleIngestDocument)

	return &Server{inner: srv, mux: mux, log: log}
}

// Run 阻塞运行，直到 Shutdown 被调用
func (s *Server) Run() error {
	s.log.Info("Worker 启动", zap.Int("concurrency", workerConcurrency))
	return s.inner.Run(s.mux)
}

// Shutdown 等待在途任务结束后停止
func (s *Server) Shutdown() {
	s.log.Info("Worker 停止中...")
	s.inner.Shutdown()
}
