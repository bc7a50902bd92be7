package rag

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadPromptTemplatesDefaults(t *testing.T) {
	templates, err := LoadPromptTemplates("")
	require.NoError(t, err)
	require.Contains(t, templates.SystemPrompt, contextPlaceholder)
	require.Equal(t, DefaultNoContextAnswer, templates.NoContextAnswer)
}

func TestLoadPromptTemplatesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := `system_prompt: |
  Answer from this context only:
  {context}
no_context_answer: "没有检索到相关内容。"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	templates, err := LoadPromptTemplates(path)
	require.NoError(t, err)
	require.Contains(t, templates.SystemPrompt, "Answer from this context only")
	require.Equal(t, "没有检索到相关内容。", templates.NoContextAnswer)
}

func TestLoadPromptTemplatesPartialOverride(t *testing.T) {
	// 只覆盖固定回答时，系统提示词保持默认
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`no_context_answer: "nothing found"`), 0o644))

	templates, err := LoadPromptTemplates(path)
	require.NoError(t, err)
	require.Equal(t, "nothing found", templates.NoContextAnswer)
	require.Equal(t, DefaultPromptTemplates().SystemPrompt, templates.SystemPrompt)
}

func TestLoadPromptTemplatesMissingPlaceholder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`system_prompt: "no placeholder here"`), 0o644))

	_, err := LoadPromptTemplates(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "占位符")
}

func TestBuildSystemPromptJoinsContexts(t *testing.T) {
	templates := DefaultPromptTemplates()

	prompt := templates.BuildSystemPrompt([]string{"第一段", "第二段", "第三段"})
	require.Contains(t, prompt, "第一段\n\n---\n\n第二段\n\n---\n\n第三段")
	require.False(t, strings.Contains(prompt, contextPlaceholder), "占位符应被完全替换")
}

func TestBuildSystemPromptEmptyContext(t *testing.T) {
	templates := DefaultPromptTemplates()

	prompt := templates.BuildSystemPrompt(nil)
	require.NotContains(t, prompt, contextPlaceholder)
	require.NotContains(t, prompt, contextSeparator)
}
