package parsers

import (
	"fmt"
	"io"
	"strings"
)

// TextParser 纯文本与 Markdown 解析器
type TextParser struct{}

// NewTextParser 创建文本解析器
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse 读取全部内容并去除首尾空白
func (p *TextParser) Parse(reader io.Reader) (string, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		return "", fmt.Errorf("文件内容为空")
	}
	return text, nil
}

// Extensions 支持的扩展名
func (p *TextParser) Extensions() []string {
	return []string{".txt", ".md", ".markdown"}
}
