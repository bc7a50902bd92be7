package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"ragbot/internal/config"
	"ragbot/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// 大文档向量化可能较慢，放宽单任务超时
const (
	ingestTaskTimeout   = 10 * time.Minute
	ingestTaskRetention = 24 * time.Hour
	ingestMaxRetry      = 3
)

// Client 任务队列客户端接口
type Client interface {
	EnqueueIngestDocument(jobID string) error
	Close() error
}

type asynqClient struct {
	inner *asynq.Client
}

// NewClient 创建任务队列客户端
func NewClient(cfg config.RedisConfig) Client {
	return &asynqClient{
		inner: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// EnqueueIngestDocument 把注入任务投递到 ingest 队列
// TaskID 取 jobID，同一任务重复投递会被 asynq 去重
func (c *asynqClient) EnqueueIngestDocument(jobID string) error {
	payload, err := json.Marshal(tasks.IngestDocumentPayload{JobID: jobID})
	if err != nil {
		return fmt.Errorf("序列化任务载荷失败: %w", err)
	}

	opts := []asynq.Option{
		asynq.Queue(tasks.QueueIngest),
		asynq.TaskID(jobID),
		asynq.MaxRetry(ingestMaxRetry),
		asynq.Timeout(ingestTaskTimeout),
		asynq.Retention(ingestTaskRetention),
	}
	if _, err := c.inner.Enqueue(asynq.NewTask(tasks.TypeIngestDocument, payload), opts...); err != nil {
		return fmt.Errorf("投递任务失败: %w", err)
	}
	return nil
}

func (c *asynqClient) Close() error {
	return c.inner.Close()
}
