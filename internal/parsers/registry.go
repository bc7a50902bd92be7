package parsers

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Registry 按扩展名分发文档解析器
type Registry struct {
	byExt map[string]Parser
}

// NewRegistry 创建注册表并挂载默认解析器
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Parser)}
	r.Register(NewTextParser())
	r.Register(NewPDFParser())
	return r
}

// Register 注册解析器，同扩展名后注册者覆盖先注册者
func (r *Registry) Register(p Parser) {
	for _, ext := range p.Extensions() {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// Supported 返回已注册的扩展名，按字典序排列
func (r *Registry) Supported() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Parse 根据文件名后缀选择解析器并提取文本
func (r *Registry) Parse(fileName string, reader io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	p, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("不支持的文件类型 %q，支持: %s", ext, strings.Join(r.Supported(), ", "))
	}
	return p.Parse(reader)
}

// ParseFile 打开并解析本地文件
func (r *Registry) ParseFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	return r.Parse(filepath.Base(path), f)
}
