package rag

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// 上下文片段之间的分隔符，保证模型能区分不同来源
const contextSeparator = "\n\n---\n\n"

// 系统提示词中填充检索上下文的占位符
const contextPlaceholder = "{context}"

// defaultSystemPromptTemplate 默认系统提示词
// 面向模型的指令保持英文
const defaultSystemPromptTemplate = `You are a helpful AI assistant using a Retrieval Augmented Generation (RAG) system.
Answer the user's question based ONLY on the provided context.
If the context doesn't contain enough information to answer the question, say "I don't have enough information to answer that question."
Don't make up information or use knowledge outside the provided context.
Always cite your sources from the context if possible.

Context:
{context}`

// DefaultNoContextAnswer 检索无命中时直接返回的固定回答，不调用生成模型
const DefaultNoContextAnswer = "I couldn't find any relevant information to answer your question."

// PromptTemplates 问答提示词配置
type PromptTemplates struct {
	SystemPrompt    string `yaml:"system_prompt"`
	NoContextAnswer string `yaml:"no_context_answer"`
}

// DefaultPromptTemplates 返回内置提示词
func DefaultPromptTemplates() *PromptTemplates {
	return &PromptTemplates{
		SystemPrompt:    defaultSystemPromptTemplate,
		NoContextAnswer: DefaultNoContextAnswer,
	}
}

// LoadPromptTemplates 从 YAML 文件加载提示词，path 为空时返回内置默认值
// 文件中缺省的字段回落到默认值
func LoadPromptTemplates(path string) (*PromptTemplates, error) {
	templates := DefaultPromptTemplates()
	if path == "" {
		return templates, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取提示词配置文件失败: %w", err)
	}

	var loaded PromptTemplates
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("解析提示词配置失败: %w", err)
	}

	if loaded.SystemPrompt != "" {
		if !strings.Contains(loaded.SystemPrompt, contextPlaceholder) {
			return nil, fmt.Errorf("系统提示词缺少 %s 占位符", contextPlaceholder)
		}
		templates.SystemPrompt = loaded.SystemPrompt
	}
	if loaded.NoContextAnswer != "" {
		templates.NoContextAnswer = loaded.NoContextAnswer
	}

	return templates, nil
}

// BuildSystemPrompt 把检索到的上下文片段填入系统提示词
func (t *PromptTemplates) BuildSystemPrompt(contexts []string) string {
	return strings.ReplaceAll(t.SystemPrompt, contextPlaceholder, strings.Join(contexts, contextSeparator))
}
