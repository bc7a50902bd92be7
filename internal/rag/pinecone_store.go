package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ragbot/pkg/httputil"
)

const (
	defaultControlPlaneURL = "https://api.pinecone.io"
	pineconeAPIVersion     = "2024-07"

	indexReadyTimeout  = 60 * time.Second
	indexReadyInterval = time.Second
)

// PineconeOptions 初始化 Pinecone 向量存储的配置
type PineconeOptions struct {
	APIKey          string
	IndexName       string
	Cloud           string
	Region          string
	Metric          string
	Dimension       int
	Namespace       string
	ControlPlaneURL string // 默认 https://api.pinecone.io
	IndexHost       string // 非空时跳过控制面解析，直连数据面(测试用)
	TimeoutSeconds  int
	HTTPClient      *http.Client
	SkipIndexCheck  bool
}

// PineconeStore 基于 Pinecone Serverless HTTP API 的向量存储实现
// 控制面负责索引生命周期，数据面地址按需解析并缓存
type PineconeStore struct {
	client       *httputil.Client
	controlPlane string
	indexName    string
	cloud        string
	region       string
	metric       string
	dimension    int
	namespace    string
	skipEnsure   bool

	mu   sync.Mutex
	host string // 已就绪索引的数据面地址，DeleteIndex 后清空
}

// NewPineconeStore 创建 Pinecone 向量存储实例
func NewPineconeStore(opts PineconeOptions) (*PineconeStore, error) {
	if opts.IndexName == "" {
		return nil, fmt.Errorf("pinecone 索引名不能为空")
	}
	if opts.APIKey == "" && !opts.SkipIndexCheck {
		return nil, fmt.Errorf("pinecone API Key 不能为空")
	}

	controlPlane := strings.TrimSuffix(opts.ControlPlaneURL, "/")
	if controlPlane == "" {
		controlPlane = defaultControlPlaneURL
	}

	cloud := opts.Cloud
	if cloud == "" {
		cloud = "aws"
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	metric := opts.Metric
	if metric == "" {
		metric = "cosine"
	}
	dimension := opts.Dimension
	if dimension <= 0 {
		dimension = 1536
	}

	timeout := opts.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	// 控制面在索引创建期间偶发 5xx，统一交给客户端层重试
	clientOpts := []httputil.ClientOption{
		httputil.WithRetries(2),
		httputil.WithHeaders(map[string]string{
			"Api-Key":                opts.APIKey,
			"X-Pinecone-API-Version": pineconeAPIVersion,
		}),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, httputil.WithHTTPClient(opts.HTTPClient))
	} else {
		clientOpts = append(clientOpts, httputil.WithTimeout(time.Duration(timeout)*time.Second))
	}
	client := httputil.NewClient(clientOpts...)

	store := &PineconeStore{
		client:       client,
		controlPlane: controlPlane,
		indexName:    opts.IndexName,
		cloud:        cloud,
		region:       region,
		metric:       metric,
		dimension:    dimension,
		namespace:    opts.Namespace,
		skipEnsure:   opts.SkipIndexCheck,
		host:         normalizeHost(opts.IndexHost),
	}

	if !store.skipEnsure {
		if err := store.EnsureIndex(context.Background()); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// EnsureIndex 确认索引存在且就绪，缺失时创建 Serverless 索引并等待就绪
func (s *PineconeStore) EnsureIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureIndexLocked(ctx)
}

func (s *PineconeStore) ensureIndexLocked(ctx context.Context) error {
	if s.host != "" {
		return nil
	}

	desc, err := s.describeIndex(ctx)
	if err == nil {
		host, err := s.waitIndexReady(ctx, desc)
		if err != nil {
			return err
		}
		s.host = host
		return nil
	}
	if !isNotFound(err) {
		return err
	}

	if err := s.createIndex(ctx); err != nil {
		return err
	}
	host, err := s.waitIndexReady(ctx, nil)
	if err != nil {
		return err
	}
	s.host = host
	return nil
}

// Upsert 写入或更新一批向量，同 ID 直接覆盖
func (s *PineconeStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	vectors := make([]pineconeVector, 0, len(records))
	for _, rec := range records {
		if len(rec.Values) != s.dimension {
			return fmt.Errorf("向量维度不匹配: 期望 %d 实际 %d", s.dimension, len(rec.Values))
		}
		vectors = append(vectors, pineconeVector{
			ID:       rec.ID,
			Values:   rec.Values,
			Metadata: rec.Metadata,
		})
	}

	dataURL, err := s.dataURL(ctx, "/vectors/upsert")
	if err != nil {
		return err
	}

	req := upsertRequest{Vectors: vectors, Namespace: s.namespace}
	var resp upsertResponse
	if err := observeStoreOp("upsert", func() error {
		return s.doRequest(ctx, http.MethodPost, dataURL, req, &resp)
	}); err != nil {
		return err
	}

	if resp.UpsertedCount != int64(len(vectors)) {
		return fmt.Errorf("pinecone upsert 数量不匹配: 期望 %d 实际 %d", len(vectors), resp.UpsertedCount)
	}
	return nil
}

// Query 执行相似度检索，返回按相关度降序的匹配结果
func (s *PineconeStore) Query(ctx context.Context, vector []float32, topK int) ([]QueryMatch, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("查询向量不能为空")
	}
	if topK <= 0 {
		topK = 5
	}

	dataURL, err := s.dataURL(ctx, "/query")
	if err != nil {
		return nil, err
	}

	req := queryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       s.namespace,
		IncludeMetadata: true,
	}
	var resp queryResponse
	if err := observeStoreOp("query", func() error {
		return s.doRequest(ctx, http.MethodPost, dataURL, req, &resp)
	}); err != nil {
		return nil, err
	}

	matches := make([]QueryMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, QueryMatch{
			ID:       m.ID,
			Score:    m.Score,
			Metadata: m.Metadata,
		})
	}
	return matches, nil
}

// DeleteIndex 删除整个索引，之后的写入或检索会重新触发建索引
func (s *PineconeStore) DeleteIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := observeStoreOp("delete_index", func() error {
		return s.doRequest(ctx, http.MethodDelete, s.controlURL("/indexes/"+url.PathEscape(s.indexName)), nil, nil)
	})
	if err != nil && !isNotFound(err) {
		return err
	}

	s.host = ""
	return nil
}

// Stats 查询索引统计信息
func (s *PineconeStore) Stats(ctx context.Context) (*IndexStats, error) {
	dataURL, err := s.dataURL(ctx, "/describe_index_stats")
	if err != nil {
		return nil, err
	}

	var resp statsResponse
	if err := observeStoreOp("stats", func() error {
		return s.doRequest(ctx, http.MethodPost, dataURL, struct{}{}, &resp)
	}); err != nil {
		return nil, err
	}

	namespaces := make(map[string]int, len(resp.Namespaces))
	for name, summary := range resp.Namespaces {
		namespaces[name] = summary.VectorCount
	}

	return &IndexStats{
		Dimension:        resp.Dimension,
		TotalVectorCount: resp.TotalVectorCount,
		IndexFullness:    resp.IndexFullness,
		Namespaces:       namespaces,
	}, nil
}

// --- 内部辅助 ---

func (s *PineconeStore) controlURL(path string) string {
	return s.controlPlane + path
}

// dataURL 返回数据面完整地址，必要时先解析并缓存索引 host
func (s *PineconeStore) dataURL(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.host == "" {
		if s.skipEnsure {
			return "", fmt.Errorf("pinecone 索引地址未配置")
		}
		if err := s.ensureIndexLocked(ctx); err != nil {
			return "", err
		}
	}
	return s.host + path, nil
}

func (s *PineconeStore) describeIndex(ctx context.Context) (*indexDescription, error) {
	var desc indexDescription
	err := s.doRequest(ctx, http.MethodGet, s.controlURL("/indexes/"+url.PathEscape(s.indexName)), nil, &desc)
	if err != nil {
		return nil, err
	}
	return &desc, nil
}

func (s *PineconeStore) createIndex(ctx context.Context) error {
	req := createIndexRequest{
		Name:      s.indexName,
		Dimension: s.dimension,
		Metric:    s.metric,
	}
	req.Spec.Serverless.Cloud = s.cloud
	req.Spec.Serverless.Region = s.region

	return observeStoreOp("create_index", func() error {
		return s.doRequest(ctx, http.MethodPost, s.controlURL("/indexes"), req, nil)
	})
}

// waitIndexReady 轮询控制面直到索引就绪，返回数据面地址
func (s *PineconeStore) waitIndexReady(ctx context.Context, desc *indexDescription) (string, error) {
	deadline := time.Now().Add(indexReadyTimeout)
	for {
		if desc == nil {
			d, err := s.describeIndex(ctx)
			if err != nil && !isNotFound(err) {
				return "", err
			}
			desc = d
		}
		if desc != nil && desc.Status.Ready && desc.Host != "" {
			return normalizeHost(desc.Host), nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("等待 pinecone 索引就绪超时: %s", s.indexName)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(indexReadyInterval):
		}
		desc = nil
	}
}

func (s *PineconeStore) doRequest(ctx context.Context, method, fullURL string, payload any, dest any) error {
	var bodyReader *bytes.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		bodyReader = bytes.NewReader(buf)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &pineconeAPIError{StatusCode: resp.StatusCode, Message: decodeErrorMessage(resp)}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("解析 pinecone 响应失败: %w", err)
	}
	return nil
}

// pineconeAPIError 携带状态码，便于上层区分索引不存在等情况
type pineconeAPIError struct {
	StatusCode int
	Message    string
}

func (e *pineconeAPIError) Error() string {
	return fmt.Sprintf("pinecone API 错误: %s (%d)", e.Message, e.StatusCode)
}

func isNotFound(err error) bool {
	apiErr, ok := err.(*pineconeAPIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// decodeErrorMessage 兼容控制面与数据面两种错误结构
func decodeErrorMessage(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return resp.Status
	}
	if body.Message != "" {
		return body.Message
	}
	if body.Error.Message != "" {
		return body.Error.Message
	}
	return resp.Status
}

func normalizeHost(host string) string {
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return strings.TrimSuffix(host, "/")
}

// --- Pinecone API payloads ---

type createIndexRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Spec      struct {
		Serverless struct {
			Cloud  string `json:"cloud"`
			Region string `json:"region"`
		} `json:"serverless"`
	} `json:"spec"`
}

type indexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

type pineconeVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []pineconeVector `json:"vectors"`
	Namespace string           `json:"namespace,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int64 `json:"upsertedCount"`
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	Namespace       string    `json:"namespace,omitempty"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
	Namespace string `json:"namespace"`
}

type statsResponse struct {
	Namespaces map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
	Dimension        int     `json:"dimension"`
	IndexFullness    float64 `json:"indexFullness"`
	TotalVectorCount int64   `json:"totalVectorCount"`
}
