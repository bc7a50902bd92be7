package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ragbot/internal/chunker"
)

// runeCodec 把每个 rune 当作一个 Token，保证分块行为可预测
type runeCodec struct{}

func (runeCodec) Encode(text string) []int {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}
	return tokens
}

func (runeCodec) Decode(tokens []int) string {
	runes := make([]rune, len(tokens))
	for i, tok := range tokens {
		runes[i] = rune(tok)
	}
	return string(runes)
}

type fakeEmbeddingProvider struct {
	batchCalls int
	batchSizes []int
	failAfter  int // 从第 N 次调用开始失败，0 表示不失败
}

func (f *fakeEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	if f.failAfter > 0 && f.batchCalls >= f.failAfter {
		return nil, fmt.Errorf("嵌入服务不可用")
	}
	f.batchSizes = append(f.batchSizes, len(texts))
	res := make([][]float32, len(texts))
	for i, txt := range texts {
		res[i] = []float32{float32(len(txt)), 0.5}
	}
	return res, nil
}

func (f *fakeEmbeddingProvider) GetModel() string        { return "test-model" }
func (f *fakeEmbeddingProvider) GetProviderName() string { return "test-provider" }
func (f *fakeEmbeddingProvider) GetDimension() int       { return 2 }

type fakeVectorStore struct {
	upserted    [][]VectorRecord
	queryReply  []QueryMatch
	queryCalls  int
	lastTopK    int
	ensureCalls int
	deleteCalls int
	upsertErr   error
	queryErr    error
}

func (f *fakeVectorStore) EnsureIndex(ctx context.Context) error {
	f.ensureCalls++
	return nil
}

func (f *fakeVectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, records)
	return nil
}

func (f *fakeVectorStore) Query(ctx context.Context, vector []float32, topK int) ([]QueryMatch, error) {
	f.queryCalls++
	f.lastTopK = topK
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryReply, nil
}

func (f *fakeVectorStore) DeleteIndex(ctx context.Context) error {
	f.deleteCalls++
	return nil
}

func (f *fakeVectorStore) Stats(ctx context.Context) (*IndexStats, error) {
	return &IndexStats{}, nil
}

func newTestIngestor(t *testing.T, store *fakeVectorStore, embedder *fakeEmbeddingProvider, maxTokens, batchSize int) *Ingestor {
	t.Helper()
	ck, err := chunker.NewChunker(runeCodec{}, maxTokens, 0)
	require.NoError(t, err)

	ing, err := NewIngestor(ck, embedder, store, IngestorConfig{
		BatchSize: batchSize,
		Pacing:    time.Nanosecond,
		Settle:    time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return ing
}

func TestIngestorBatching(t *testing.T) {
	store := &fakeVectorStore{}
	embedder := &fakeEmbeddingProvider{}
	ing := newTestIngestor(t, store, embedder, 10, 4)

	// 95 个 Token 按 10/0 切分得到 10 块，批大小 4 应产生 4+4+2 三个批次
	text := strings.Repeat("abcdefghi ", 9) + "final"
	result, err := ing.Ingest(context.Background(), text, IngestOptions{SourceName: "batch.txt"})
	require.NoError(t, err)
	require.Equal(t, 10, result.ChunkCount)
	require.Equal(t, 10, result.VectorCount)

	require.Equal(t, 3, embedder.batchCalls, "每个批次只调用一次嵌入接口")
	require.Equal(t, []int{4, 4, 2}, embedder.batchSizes)
	require.Len(t, store.upserted, 3)

	// 记录 ID 按全局分块序号连续编号
	var ids []string
	for _, batch := range store.upserted {
		for _, rec := range batch {
			ids = append(ids, rec.ID)
		}
	}
	require.Len(t, ids, 10)
	for i, id := range ids {
		require.Equal(t, fmt.Sprintf("chunk_%d", i), id)
	}

	// 元数据携带原文与全局序号
	first := store.upserted[0][0]
	require.Equal(t, "abcdefghi ", first.Metadata["text"])
	require.Equal(t, 0, first.Metadata["chunk_id"])
	last := store.upserted[2][1]
	require.Equal(t, 9, last.Metadata["chunk_id"])
}

func TestIngestorEmptyText(t *testing.T) {
	store := &fakeVectorStore{}
	embedder := &fakeEmbeddingProvider{}
	ing := newTestIngestor(t, store, embedder, 10, 4)

	result, err := ing.Ingest(context.Background(), "", IngestOptions{})
	require.NoError(t, err)
	require.Equal(t, 0, result.ChunkCount)
	require.Equal(t, 0, result.VectorCount)
	require.Zero(t, embedder.batchCalls, "空文本不应调用嵌入接口")
	require.Empty(t, store.upserted)
}

func TestIngestorEmbedFailureAborts(t *testing.T) {
	store := &fakeVectorStore{}
	embedder := &fakeEmbeddingProvider{failAfter: 2}
	ing := newTestIngestor(t, store, embedder, 10, 4)

	text := strings.Repeat("0123456789", 8)
	_, err := ing.Ingest(context.Background(), text, IngestOptions{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "向量化批次")

	// 失败前已写入的批次保留，不回滚
	require.Len(t, store.upserted, 1)
}

func TestIngestorUpsertFailureAborts(t *testing.T) {
	store := &fakeVectorStore{upsertErr: fmt.Errorf("连接超时")}
	embedder := &fakeEmbeddingProvider{}
	ing := newTestIngestor(t, store, embedder, 10, 4)

	_, err := ing.Ingest(context.Background(), strings.Repeat("x", 30), IngestOptions{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "写入批次")
	require.Equal(t, 1, embedder.batchCalls)
}

func TestIngestorResetRebuildsIndex(t *testing.T) {
	store := &fakeVectorStore{}
	embedder := &fakeEmbeddingProvider{}
	ing := newTestIngestor(t, store, embedder, 10, 4)

	result, err := ing.Ingest(context.Background(), "hello", IngestOptions{Reset: true})
	require.NoError(t, err)
	require.Equal(t, 1, result.ChunkCount)

	require.Equal(t, 1, store.deleteCalls, "重置应删除索引一次")
	require.GreaterOrEqual(t, store.ensureCalls, 1, "删除后应重建索引")
	require.Len(t, store.upserted, 1)
}
