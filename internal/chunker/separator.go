package chunker

import (
	"fmt"
	"strings"
)

// SeparatorChunker 基于分隔符的分块器
// 按语义边界(如段落)切分文本，再把片段贪心合并到 Token 预算内
type SeparatorChunker struct {
	codec     Codec
	separator string
	maxTokens int
}

// NewSeparatorChunker 创建分隔符分块器
// separator 为空时默认按段落("\n\n")切分
func NewSeparatorChunker(codec Codec, separator string, maxTokens int) (*SeparatorChunker, error) {
	if codec == nil {
		return nil, fmt.Errorf("codec 不能为空")
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("分块参数非法: maxTokens 必须大于 0, 实际 %d", maxTokens)
	}
	if separator == "" {
		separator = "\n\n"
	}

	return &SeparatorChunker{
		codec:     codec,
		separator: separator,
		maxTokens: maxTokens,
	}, nil
}

// Separator 返回当前使用的分隔符
func (c *SeparatorChunker) Separator() string {
	return c.separator
}

// MaxTokens 返回单块 Token 预算
func (c *SeparatorChunker) MaxTokens() int {
	return c.maxTokens
}

// Split 按分隔符切分并贪心合并
// 片段永远保持完整：单个片段超出预算时不再细分，独立成块
// 分隔符在块内重新插入，块与块之间不保留
func (c *SeparatorChunker) Split(text string) []Chunk {
	parts := strings.Split(text, c.separator)

	var chunks []Chunk
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       strings.Join(current, c.separator),
			TokenCount: currentTokens,
		})
		current = nil
		currentTokens = 0
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		partTokens := len(c.codec.Encode(part))
		if len(current) > 0 && currentTokens+partTokens > c.maxTokens {
			flush()
		}
		current = append(current, part)
		currentTokens += partTokens
	}

	flush()
	return chunks
}
