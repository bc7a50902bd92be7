package tasks

// 任务类型
const (
	TypeIngestDocument = "ingest:document"
)

// 队列名称，客户端投递与 Worker 消费两侧共用
const (
	QueueIngest  = "ingest"
	QueueDefault = "default"
)

// IngestDocumentPayload 文档注入任务载荷
// 正文不进队列，Worker 凭 JobID 从数据库取回任务全量信息
type IngestDocumentPayload struct {
	JobID string `json:"job_id"`
}
