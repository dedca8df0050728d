package document

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fyerfyer/doc-retrieval-engine/internal/models"
)

// PlainTextParser 纯文本解析器
type PlainTextParser struct{}

// NewPlainTextParser 创建一个新的纯文本解析器
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse 解析纯文本文件
func (p *PlainTextParser) Parse(filePath string) ([]models.Page, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open text file: %v", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader 从Reader解析纯文本内容
// 换页符（\f）视为页面分隔符，没有换页符时整个文件作为第1页
func (p *PlainTextParser) ParseReader(r io.Reader, filename string) ([]models.Page, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read text content: %v", err)
	}

	var pages []models.Page
	for i, part := range strings.Split(string(content), "\f") {
		text := strings.TrimSpace(part)
		if text == "" {
			continue
		}
		pages = append(pages, models.Page{
			Number: i + 1,
			Text:   text,
		})
	}

	return pages, nil
}
