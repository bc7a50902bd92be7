package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ragbot/internal/metrics"
)

const (
	defaultCachePrefix = "ragbot:emb:"
	defaultCacheTTL    = 7 * 24 * time.Hour
	maxLocalEntries    = 10000
)

// EmbeddingCache 向量缓存
// 本地 map 作 L1，Redis 可选作 L2；键由模型名加文本哈希组成，
// 同一段文本换模型后不会串缓存
type EmbeddingCache struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration

	mu    sync.RWMutex
	local map[string][]float32
}

// cachedEmbedding Redis 中的存储格式
type cachedEmbedding struct {
	Vector    []float32 `json:"vector"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEmbeddingCache 创建向量缓存，redisClient 为 nil 时退化为纯本地缓存
func NewEmbeddingCache(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *EmbeddingCache {
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &EmbeddingCache{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
		local:  make(map[string][]float32),
	}
}

// makeKey 文本取 SHA256 前 16 字节，避免把原文塞进键里
func (c *EmbeddingCache) makeKey(text, model string) string {
	hash := sha256.Sum256([]byte(text))
	return c.prefix + model + ":" + hex.EncodeToString(hash[:16])
}

// Get 查询单条向量
func (c *EmbeddingCache) Get(ctx context.Context, text, model string) ([]float32, bool) {
	key := c.makeKey(text, model)

	c.mu.RLock()
	vec, ok := c.local[key]
	c.mu.RUnlock()
	if ok {
		metrics.CacheHitsTotal.WithLabelValues("embedding").Inc()
		return vec, true
	}

	if c.redis != nil {
		if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
			var cached cachedEmbedding
			if json.Unmarshal(data, &cached) == nil {
				c.storeLocal(key, cached.Vector)
				metrics.CacheHitsTotal.WithLabelValues("embedding").Inc()
				return cached.Vector, true
			}
		}
	}

	metrics.CacheMissesTotal.WithLabelValues("embedding").Inc()
	return nil, false
}

// Set 写入单条向量，Redis 写失败时本地缓存仍然生效
func (c *EmbeddingCache) Set(ctx context.Context, text, model string, vector []float32) error {
	key := c.makeKey(text, model)
	c.storeLocal(key, vector)

	if c.redis == nil {
		return nil
	}
	data, err := json.Marshal(cachedEmbedding{
		Vector:    vector,
		Model:     model,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key, data, c.ttl).Err()
}

// GetBatch 批量查询，返回命中映射与未命中文本
// 本地未命中的部分用一次 MGET 查 Redis，而不是逐键往返
func (c *EmbeddingCache) GetBatch(ctx context.Context, texts []string, model string) (map[string][]float32, []string) {
	hits := make(map[string][]float32)
	var missing []string
	var missingKeys []string

	c.mu.RLock()
	for _, text := range texts {
		key := c.makeKey(text, model)
		if vec, ok := c.local[key]; ok {
			hits[text] = vec
		} else {
			missing = append(missing, text)
			missingKeys = append(missingKeys, key)
		}
	}
	c.mu.RUnlock()

	if c.redis == nil || len(missing) == 0 {
		c.recordBatch(len(hits), len(missing))
		return hits, missing
	}

	values, err := c.redis.MGet(ctx, missingKeys...).Result()
	if err != nil {
		c.recordBatch(len(hits), len(missing))
		return hits, missing
	}

	var stillMissing []string
	for i, raw := range values {
		text := missing[i]
		data, ok := raw.(string)
		if !ok {
			stillMissing = append(stillMissing, text)
			continue
		}
		var cached cachedEmbedding
		if json.Unmarshal([]byte(data), &cached) != nil {
			stillMissing = append(stillMissing, text)
			continue
		}
		c.storeLocal(missingKeys[i], cached.Vector)
		hits[text] = cached.Vector
	}

	c.recordBatch(len(hits), len(stillMissing))
	return hits, stillMissing
}

// SetBatch 批量写入，Redis 侧合并成一个 pipeline
func (c *EmbeddingCache) SetBatch(ctx context.Context, texts []string, model string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("文本与向量数量不匹配: %d != %d", len(texts), len(vectors))
	}

	now := time.Now()
	var pipe redis.Pipeliner
	if c.redis != nil {
		pipe = c.redis.Pipeline()
	}

	for i, text := range texts {
		key := c.makeKey(text, model)
		c.storeLocal(key, vectors[i])

		if pipe == nil {
			continue
		}
		data, err := json.Marshal(cachedEmbedding{
			Vector:    vectors[i],
			Model:     model,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		pipe.Set(ctx, key, data, c.ttl)
	}

	if pipe != nil {
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// storeLocal 写本地缓存，超过上限时整体清空重建
// 向量缓存可随时重建，不值得为它维护 LRU
func (c *EmbeddingCache) storeLocal(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.local) >= maxLocalEntries {
		c.local = make(map[string][]float32)
	}
	c.local[key] = vector
}

func (c *EmbeddingCache) recordBatch(hits, misses int) {
	if hits > 0 {
		metrics.CacheHitsTotal.WithLabelValues("embedding").Add(float64(hits))
	}
	if misses > 0 {
		metrics.CacheMissesTotal.WithLabelValues("embedding").Add(float64(misses))
	}
}

// CachedEmbeddingProvider 在底层提供者前挂一层 EmbeddingCache
// 批量请求只把未命中的文本发给底层，结果按原始顺序还原
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	cache    *EmbeddingCache
}

// NewCachedEmbeddingProvider 包装底层提供者
func NewCachedEmbeddingProvider(provider EmbeddingProvider, cache *EmbeddingCache) *CachedEmbeddingProvider {
	return &CachedEmbeddingProvider{provider: provider, cache: cache}
}

// Embed 单条向量化，先查缓存
func (p *CachedEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	model := p.provider.GetModel()
	if vec, ok := p.cache.Get(ctx, text, model); ok {
		return vec, nil
	}

	vec, err := p.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	_ = p.cache.Set(ctx, text, model, vec)
	return vec, nil
}

// EmbedBatch 批量向量化，只对缓存未命中的文本调底层接口
func (p *CachedEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	model := p.provider.GetModel()
	hits, missing := p.cache.GetBatch(ctx, texts, model)

	if len(missing) > 0 {
		vectors, err := p.provider.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		_ = p.cache.SetBatch(ctx, missing, model, vectors)
		for i, text := range missing {
			hits[text] = vectors[i]
		}
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = hits[text]
	}
	return result, nil
}

// GetModel 底层模型名
func (p *CachedEmbeddingProvider) GetModel() string {
	return p.provider.GetModel()
}

// GetProviderName 底层提供者名
func (p *CachedEmbeddingProvider) GetProviderName() string {
	return p.provider.GetProviderName()
}

// GetDimension 底层向量维度
func (p *CachedEmbeddingProvider) GetDimension() int {
	return p.provider.GetDimension()
}
