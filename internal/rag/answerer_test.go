package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeChatProvider struct {
	calls      int
	lastSystem string
	lastUser   string
	lastTemp   float32
	reply      string
	err        error
}

func (f *fakeChatProvider) Complete(ctx context.Context, systemPrompt, userMessage string, temperature float32) (string, error) {
	f.calls++
	f.lastSystem = systemPrompt
	f.lastUser = userMessage
	f.lastTemp = temperature
	if f.err != nil {
		return "", f.err
	}
	if f.reply == "" {
		return "生成的回答", nil
	}
	return f.reply, nil
}

func (f *fakeChatProvider) GetModel() string { return "test-chat-model" }

func matchWithText(id, text string, score float64) QueryMatch {
	return QueryMatch{
		ID:       id,
		Score:    score,
		Metadata: map[string]any{"text": text},
	}
}

func newTestAnswerer(t *testing.T, store *fakeVectorStore, chat *fakeChatProvider, topK int) *Answerer {
	t.Helper()
	ans, err := NewAnswerer(&fakeEmbeddingProvider{}, store, chat, nil, topK, nil)
	require.NoError(t, err)
	return ans
}

func TestAnswererHappyPath(t *testing.T) {
	store := &fakeVectorStore{
		queryReply: []QueryMatch{
			matchWithText("chunk_0", "第一段上下文", 0.95),
			matchWithText("chunk_3", "第二段上下文", 0.88),
			matchWithText("chunk_7", "第三段上下文", 0.70),
		},
	}
	chat := &fakeChatProvider{reply: "根据上下文的回答"}
	ans := newTestAnswerer(t, store, chat, 3)

	result, err := ans.Answer(context.Background(), "问题是什么？")
	require.NoError(t, err)
	require.Equal(t, "根据上下文的回答", result.Answer)
	require.Equal(t, []string{"第一段上下文", "第二段上下文", "第三段上下文"}, result.RetrievedContext)

	require.Equal(t, 1, chat.calls)
	require.Equal(t, 3, store.lastTopK)
	require.Equal(t, "问题是什么？", chat.lastUser)
	require.Zero(t, chat.lastTemp)

	// 系统提示词内嵌全部上下文，段落间用分隔线连接
	require.Contains(t, chat.lastSystem, "第一段上下文\n\n---\n\n第二段上下文\n\n---\n\n第三段上下文")
	require.Contains(t, chat.lastSystem, "Retrieval Augmented Generation")
	require.NotContains(t, chat.lastSystem, "{context}")
}

func TestAnswererNoMatchesSkipsGeneration(t *testing.T) {
	store := &fakeVectorStore{}
	chat := &fakeChatProvider{}
	ans := newTestAnswerer(t, store, chat, 5)

	result, err := ans.Answer(context.Background(), "没有答案的问题")
	require.NoError(t, err)
	require.Equal(t, DefaultNoContextAnswer, result.Answer)
	require.NotNil(t, result.RetrievedContext)
	require.Empty(t, result.RetrievedContext)
	require.Zero(t, chat.calls, "检索为空时不应调用生成接口")
}

func TestAnswererSkipsMatchesWithoutText(t *testing.T) {
	store := &fakeVectorStore{
		queryReply: []QueryMatch{
			{ID: "chunk_1", Score: 0.9, Metadata: map[string]any{"chunk_id": 1}},
			{ID: "chunk_2", Score: 0.8},
		},
	}
	chat := &fakeChatProvider{}
	ans := newTestAnswerer(t, store, chat, 5)

	result, err := ans.Answer(context.Background(), "元数据缺失")
	require.NoError(t, err)
	require.Equal(t, DefaultNoContextAnswer, result.Answer)
	require.Zero(t, chat.calls)
}

func TestAnswererDefaultTopK(t *testing.T) {
	store := &fakeVectorStore{}
	ans := newTestAnswerer(t, store, &fakeChatProvider{}, 0)

	_, err := ans.Answer(context.Background(), "默认取几条")
	require.NoError(t, err)
	require.Equal(t, 5, store.lastTopK)
}

func TestAnswererEmbedError(t *testing.T) {
	store := &fakeVectorStore{}
	chat := &fakeChatProvider{}
	ans, err := NewAnswerer(&fakeEmbeddingProvider{failAfter: 1}, store, chat, nil, 5, nil)
	require.NoError(t, err)

	_, err = ans.Answer(context.Background(), "问题")
	require.Error(t, err)
	require.Contains(t, err.Error(), "问题向量化失败")
	require.Zero(t, store.queryCalls)
	require.Zero(t, chat.calls)
}

func TestAnswererQueryError(t *testing.T) {
	store := &fakeVectorStore{queryErr: fmt.Errorf("索引不可用")}
	chat := &fakeChatProvider{}
	ans := newTestAnswerer(t, store, chat, 5)

	_, err := ans.Answer(context.Background(), "问题")
	require.Error(t, err)
	require.Contains(t, err.Error(), "向量检索失败")
	require.Zero(t, chat.calls)
}

func TestAnswererChatError(t *testing.T) {
	store := &fakeVectorStore{
		queryReply: []QueryMatch{matchWithText("chunk_0", "有上下文", 0.9)},
	}
	chat := &fakeChatProvider{err: fmt.Errorf("模型超时")}
	ans := newTestAnswerer(t, store, chat, 5)

	_, err := ans.Answer(context.Background(), "问题")
	require.Error(t, err)
	require.Contains(t, err.Error(), "生成回答失败")
}
