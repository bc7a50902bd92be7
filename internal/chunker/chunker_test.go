package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// runeCodec 把每个 rune 当作一个 Token，编码解码完全可逆
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

func TestNewChunkerValidation(t *testing.T) {
	tests := []struct {
		name      string
		codec     Codec
		maxTokens int
		overlap   int
		wantErr   bool
	}{
		{"合法参数", runeCodec{}, 500, 50, false},
		{"零重叠", runeCodec{}, 100, 0, false},
		{"codec 为空", nil, 500, 50, true},
		{"maxTokens 为零", runeCodec{}, 0, 0, true},
		{"maxTokens 为负", runeCodec{}, -1, 0, true},
		{"overlap 为负", runeCodec{}, 500, -1, true},
		{"overlap 等于 maxTokens", runeCodec{}, 500, 500, true},
		{"overlap 大于 maxTokens", runeCodec{}, 500, 600, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.codec, tt.maxTokens, tt.overlap)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSplitEmptyText(t *testing.T) {
	c, err := NewChunker(runeCodec{}, 500, 50)
	require.NoError(t, err)

	chunks := c.Split("")
	if len(chunks) != 0 {
		t.Fatalf("空文本应返回零分块, 实际 %d", len(chunks))
	}
}

func TestSplitChunkCounts(t *testing.T) {
	tests := []struct {
		name       string
		tokenCount int
		maxTokens  int
		overlap    int
		wantChunks int
	}{
		{"1900 tokens @ 500/50", 1900, 500, 50, 5},
		{"恰好一个窗口", 500, 500, 50, 1},
		{"超出窗口一个 Token", 501, 500, 50, 2},
		{"小于窗口", 100, 500, 50, 1},
		{"零重叠整除", 1000, 100, 0, 10},
		{"零重叠有余数", 1001, 100, 0, 11},
		{"末窗口恰好覆盖", 1351, 500, 50, 3},
		{"单 Token", 1, 500, 50, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(runeCodec{}, tt.maxTokens, tt.overlap)
			require.NoError(t, err)

			text := strings.Repeat("a", tt.tokenCount)
			chunks := c.Split(text)
			if len(chunks) != tt.wantChunks {
				t.Fatalf("期望 %d 个分块, 实际 %d", tt.wantChunks, len(chunks))
			}

			for _, chunk := range chunks {
				if chunk.TokenCount > tt.maxTokens {
					t.Fatalf("分块 %d 超出 Token 上限: %d > %d", chunk.Index, chunk.TokenCount, tt.maxTokens)
				}
			}
		})
	}
}

func TestSplitWindowPositions(t *testing.T) {
	// 1900 Token 文档按 500/50 切分，窗口起点应为 0,450,900,1350,1800
	c, err := NewChunker(runeCodec{}, 500, 50)
	require.NoError(t, err)

	text := strings.Repeat("a", 1900)
	chunks := c.Split(text)
	require.Len(t, chunks, 5)

	wantSizes := []int{500, 500, 500, 500, 100}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Fatalf("分块序号错误: 期望 %d, 实际 %d", i, chunk.Index)
		}
		if chunk.TokenCount != wantSizes[i] {
			t.Fatalf("分块 %d Token 数错误: 期望 %d, 实际 %d", i, wantSizes[i], chunk.TokenCount)
		}
	}
}

func TestSplitRoundTrip(t *testing.T) {
	// 首块完整保留，后续块去掉重叠部分后拼接，应还原原始 Token 序列
	codec := runeCodec{}
	overlap := 7
	c, err := NewChunker(codec, 32, overlap)
	require.NoError(t, err)

	text := "The quick brown fox jumps over the lazy dog. 敏捷的棕色狐狸跳过了懒狗。0123456789 abcdefghijklmnopqrstuvwxyz"
	original := codec.Encode(text)
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)

	var rebuilt []int
	for i, chunk := range chunks {
		tokens := codec.Encode(chunk.Text)
		if i == 0 {
			rebuilt = append(rebuilt, tokens...)
		} else {
			rebuilt = append(rebuilt, tokens[overlap:]...)
		}
	}

	require.Equal(t, original, rebuilt, "去重叠拼接应还原原始序列")
}

func TestSplitOverlapContent(t *testing.T) {
	// 相邻分块的边界应共享 overlap 个 Token
	codec := runeCodec{}
	overlap := 5
	c, err := NewChunker(codec, 20, overlap)
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 10)
	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := codec.Encode(chunks[i-1].Text)
		curr := codec.Encode(chunks[i].Text)
		require.Equal(t, prev[len(prev)-overlap:], curr[:overlap],
			"分块 %d 与 %d 的重叠区不一致", i-1, i)
	}
}

func TestSplitZeroOverlapTiles(t *testing.T) {
	// 零重叠时各分块应无缝平铺原文
	c, err := NewChunker(runeCodec{}, 16, 0)
	require.NoError(t, err)

	text := strings.Repeat("0123456789", 13)
	chunks := c.Split(text)

	var sb strings.Builder
	for _, chunk := range chunks {
		sb.WriteString(chunk.Text)
	}
	require.Equal(t, text, sb.String())
}

func TestSplitDeterministic(t *testing.T) {
	c, err := NewChunker(runeCodec{}, 50, 10)
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox ", 40)
	first := c.Split(text)
	second := c.Split(text)
	require.Equal(t, first, second, "相同输入的分块结果应完全一致")
}
