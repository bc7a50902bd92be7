package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// FallbackEncoding 未注册模型使用的默认编码
const FallbackEncoding = "cl100k_base"

// Tokenizer 基于 tiktoken 的文本/Token 互转器
// 并发安全，可在多个请求间共享
type Tokenizer struct {
	enc      *tiktoken.Tiktoken
	model    string
	fallback bool
}

// New 创建指定模型的 Tokenizer
// 模型没有对应编码时回退到 cl100k_base 并记录警告，不视为错误
func New(model string, log *zap.Logger) (*Tokenizer, error) {
	if log == nil {
		log = zap.NewNop()
	}

	enc, err := tiktoken.EncodingForModel(model)
	fallback := false
	if err != nil {
		log.Warn("模型无对应编码，回退到默认编码",
			zap.String("model", model),
			zap.String("encoding", FallbackEncoding),
		)
		enc, err = tiktoken.GetEncoding(FallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("加载默认编码失败: %w", err)
		}
		fallback = true
	}

	return &Tokenizer{
		enc:      enc,
		model:    model,
		fallback: fallback,
	}, nil
}

// Encode 将文本编码为 Token 序列
func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode 将 Token 序列还原为文本
func (t *Tokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Count 统计文本的 Token 数量
func (t *Tokenizer) Count(text string) int {
	return len(t.Encode(text))
}

// Model 返回创建时指定的模型名
func (t *Tokenizer) Model() string {
	return t.model
}

// IsFallback 是否使用了默认编码
func (t *Tokenizer) IsFallback() bool {
	return t.fallback
}
