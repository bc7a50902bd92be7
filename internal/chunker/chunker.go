package chunker

import (
	"fmt"
)

// Codec 分块所需的最小编码能力，由 tokenizer 包提供实现
type Codec interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Chunk 一个文本分块
type Chunk struct {
	Index      int    `json:"index"`       // 分块序号(从0开始)
	Text       string `json:"text"`        // 分块文本
	TokenCount int    `json:"token_count"` // Token 数量
}

// Chunker 基于 Token 滑动窗口的分块器
// 窗口大小为 maxTokens，每步前进 maxTokens-overlap 个 Token
type Chunker struct {
	codec     Codec
	maxTokens int
	overlap   int
}

// NewChunker 创建分块器
// overlap 必须小于 maxTokens，否则窗口无法前进，直接返回配置错误
func NewChunker(codec Codec, maxTokens, overlapTokens int) (*Chunker, error) {
	if codec == nil {
		return nil, fmt.Errorf("codec 不能为空")
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("分块参数非法: maxTokens 必须大于 0, 实际 %d", maxTokens)
	}
	if overlapTokens < 0 {
		return nil, fmt.Errorf("分块参数非法: overlapTokens 不能为负, 实际 %d", overlapTokens)
	}
	if overlapTokens >= maxTokens {
		return nil, fmt.Errorf("分块参数非法: overlapTokens(%d) 必须小于 maxTokens(%d)",
			overlapTokens, maxTokens)
	}

	return &Chunker{
		codec:     codec,
		maxTokens: maxTokens,
		overlap:   overlapTokens,
	}, nil
}

// MaxTokens 返回单块 Token 上限
func (c *Chunker) MaxTokens() int { return c.maxTokens }

// Overlap 返回相邻块的重叠 Token 数
func (c *Chunker) Overlap() int { return c.overlap }

// Split 将文本切分为带重叠的 Token 窗口
// 相同输入与参数下输出字节级一致；空文本返回空列表
func (c *Chunker) Split(text string) []Chunk {
	return c.SplitTokens(c.codec.Encode(text))
}

// SplitTokens 对已编码的 Token 序列分块
func (c *Chunker) SplitTokens(tokens []int) []Chunk {
	if len(tokens) == 0 {
		return nil
	}

	step := c.maxTokens - c.overlap
	chunks := make([]Chunk, 0, (len(tokens)+step-1)/step)

	for start := 0; start < len(tokens); start += step {
		end := start + c.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		window := tokens[start:end]
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       c.codec.Decode(window),
			TokenCount: len(window),
		})

		// 窗口已覆盖到序列末尾，这是最后一块
		if end == len(tokens) {
			break
		}
	}

	return chunks
}
