package parsers

import "io"

// Parser 从单一格式的文档中提取纯文本
type Parser interface {
	// Parse 读取全部内容并提取纯文本
	Parse(reader io.Reader) (string, error)

	// Extensions 返回支持的文件扩展名，形如 ".txt"
	Extensions() []string
}
