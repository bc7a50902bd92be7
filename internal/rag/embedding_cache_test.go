package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddingCacheLocalOnly(t *testing.T) {
	cache := NewEmbeddingCache(nil, "", 0)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "你好", "test-model")
	require.False(t, ok, "空缓存不应命中")

	require.NoError(t, cache.Set(ctx, "你好", "test-model", []float32{0.1, 0.2}))

	vec, ok := cache.Get(ctx, "你好", "test-model")
	require.True(t, ok)
	require.Equal(t, []float32{0.1, 0.2}, vec)

	// 相同文本不同模型是不同的键
	_, ok = cache.Get(ctx, "你好", "other-model")
	require.False(t, ok)
}

func TestEmbeddingCacheGetBatch(t *testing.T) {
	cache := NewEmbeddingCache(nil, "", 0)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", "test-model", []float32{1, 0}))

	hits, missing := cache.GetBatch(ctx, []string{"a", "b", "c"}, "test-model")
	require.Len(t, hits, 1)
	require.Equal(t, []float32{1, 0}, hits["a"])
	require.Equal(t, []string{"b", "c"}, missing)
}

func TestEmbeddingCacheSetBatchLengthMismatch(t *testing.T) {
	cache := NewEmbeddingCache(nil, "", 0)

	err := cache.SetBatch(context.Background(), []string{"a", "b"}, "test-model", [][]float32{{1, 0}})
	require.Error(t, err)
}

func TestCachedProviderOnlyEmbedsMissing(t *testing.T) {
	cache := NewEmbeddingCache(nil, "", 0)
	provider := &fakeEmbeddingProvider{}
	cached := NewCachedEmbeddingProvider(provider, cache)
	ctx := context.Background()

	// 预热其中一条
	require.NoError(t, cache.Set(ctx, "hot", provider.GetModel(), []float32{9, 9}))

	vecs, err := cached.EmbedBatch(ctx, []string{"hot", "cold"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	// 命中的取缓存值，未命中的走底层提供者
	require.Equal(t, []float32{9, 9}, vecs[0])
	require.Equal(t, []float32{4, 0.5}, vecs[1])

	require.Equal(t, 1, provider.batchCalls)
	require.Equal(t, []int{1}, provider.batchSizes)
}

func TestCachedProviderAllHitSkipsProvider(t *testing.T) {
	cache := NewEmbeddingCache(nil, "", 0)
	provider := &fakeEmbeddingProvider{}
	cached := NewCachedEmbeddingProvider(provider, cache)
	ctx := context.Background()

	// 第一次调用落库
	_, err := cached.Embed(ctx, "text")
	require.NoError(t, err)
	require.Equal(t, 1, provider.batchCalls)

	// 第二次纯缓存命中，不再触发底层调用
	vec, err := cached.Embed(ctx, "text")
	require.NoError(t, err)
	require.Equal(t, []float32{4, 0.5}, vec)
	require.Equal(t, 1, provider.batchCalls)
}
