package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragbot_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragbot_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets, // 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10
		},
		[]string{"method", "path"},
	)

	// APIRequestSize API 请求体大小（字节）
	APIRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragbot_api_request_size_bytes",
			Help:    "API 请求体大小分布",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path"},
	)

	// APIResponseSize API 响应体大小（字节）
	APIResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragbot_api_response_size_bytes",
			Help:    "API 响应体大小分布",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path"},
	)
)

// 问答指标
var (
	// ChatRequestsTotal 问答请求总数
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragbot_chat_requests_total",
			Help: "问答请求总数",
		},
		[]string{"status"}, // status: answered, no_context, error
	)

	// ChatRequestDuration 问答全链路耗时（秒）
	ChatRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragbot_chat_request_duration_seconds",
			Help:    "问答全链路耗时分布",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"status"},
	)

	// RetrievalResults 检索命中数量
	RetrievalResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragbot_retrieval_results",
			Help:    "向量检索返回结果数量分布",
			Buckets: []float64{0, 1, 3, 5, 10, 20},
		},
	)
)

// 注入指标
var (
	// IngestJobsTotal 注入任务总数
	IngestJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragbot_ingest_jobs_total",
			Help: "注入任务总数",
		},
		[]string{"status"}, // status: completed, failed
	)

	// IngestBatchesTotal 注入批次总数
	IngestBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ragbot_ingest_batches_total",
			Help: "已写入向量库的批次总数",
		},
	)

	// IngestedVectorsTotal 注入向量总数
	IngestedVectorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ragbot_ingested_vectors_total",
			Help: "已写入向量库的向量总数",
		},
	)

	// IngestDuration 注入任务耗时（秒）
	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragbot_ingest_duration_seconds",
			Help:    "注入任务耗时分布",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
)

// AI 模型调用指标
var (
	// ModelCallsTotal 模型调用总数
	ModelCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragbot_model_calls_total",
			Help: "AI 模型调用总数",
		},
		[]string{"provider", "model", "status"},
	)

	// ModelCallDuration 模型调用耗时（秒）
	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragbot_model_call_duration_seconds",
			Help:    "AI 模型调用耗时分布",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "model"},
	)
)

// 向量库指标
var (
	// VectorStoreRequestsTotal 向量库请求总数
	VectorStoreRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragbot_vector_store_requests_total",
			Help: "向量库请求总数",
		},
		[]string{"operation", "status"}, // operation: upsert, query, create_index, delete_index, stats
	)

	// VectorStoreRequestDuration 向量库请求耗时（秒）
	VectorStoreRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragbot_vector_store_request_duration_seconds",
			Help:    "向量库请求耗时分布",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
		},
		[]string{"operation"},
	)
)

// 缓存指标
var (
	// CacheHitsTotal 缓存命中数
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragbot_cache_hits_total",
			Help: "缓存命中总数",
		},
		[]string{"cache_type"},
	)

	// CacheMissesTotal 缓存未命中数
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragbot_cache_misses_total",
			Help: "缓存未命中总数",
		},
		[]string{"cache_type"},
	)
)

// 系统指标
var (
	// BuildInfo 构建信息
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ragbot_build_info",
			Help: "RAG 服务构建信息",
		},
		[]string{"version", "go_version", "commit"},
	)
)

// RecordBuildInfo 记录构建信息
func RecordBuildInfo(version, goVersion, commit string) {
	BuildInfo.WithLabelValues(version, goVersion, commit).Set(1)
}
