package document

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fyerfyer/doc-retrieval-engine/internal/models"
)

// ChunkerConfig 分块器配置
type ChunkerConfig struct {
	ChunkSize    int // 分块目标大小（按字符数）
	ChunkOverlap int // 相邻分块的重叠大小（字符数）
	MinChunkSize int // 最小分块大小，小于此值的尾块会并入前一块
}

// DefaultChunkerConfig 返回默认分块器配置
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:    2000,
		ChunkOverlap: 300,
		MinChunkSize: 100,
	}
}

// Chunker 文档分块器
// 将按页组织的文档文本切分为带页码和偏移信息的分块序列
type Chunker struct {
	config ChunkerConfig
}

// NewChunker 创建新的文档分块器
func NewChunker(config ChunkerConfig) *Chunker {
	return &Chunker{
		config: config,
	}
}

// paragraph 单个段落及其所属页码
type paragraph struct {
	text string
	page int
}

// 段落分隔符：空行（可含空白字符）
var paragraphPattern = regexp.MustCompile(`\n\s*\n`)

// ChunkDocument 将文档切分为分块序列
// 优先在段落边界切分；单个段落超出目标大小时作为超大分块整体输出，
// 不在句子中间断开。相同输入和配置总是产生相同的分块序列。
// 空文档返回空切片，不视为错误。
func (c *Chunker) ChunkDocument(doc models.DocumentContent) []models.Chunk {
	paragraphs := c.collectParagraphs(doc.Pages)
	if len(paragraphs) == 0 {
		return []models.Chunk{}
	}

	var chunks []models.Chunk
	var cur []paragraph
	curLen := 0 // 当前积累段落的核心文本长度（含段落间分隔符）
	offset := 0 // 下一个核心文本在文档规范化文本中的偏移

	// flush 将当前积累的段落输出为一个分块
	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunk := c.buildChunk(doc, cur, chunks, offset, len(chunks))
		offset += len(chunk.CoreText()) + 2 // 规范化文本中段落块之间以空行相接
		chunks = append(chunks, chunk)
		cur = nil
		curLen = 0
	}

	for _, para := range paragraphs {
		// 单个段落超过目标大小：先输出已积累的内容，再单独输出超大分块
		if len(para.text) > c.config.ChunkSize {
			flush()
			cur = []paragraph{para}
			curLen = len(para.text)
			flush()
			continue
		}

		// 加入该段落会超出目标大小时，先输出当前分块
		if curLen > 0 && curLen+2+len(para.text) > c.config.ChunkSize {
			flush()
		}

		if curLen > 0 {
			curLen += 2
		}
		cur = append(cur, para)
		curLen += len(para.text)
	}

	// 尾块过小时并入前一个分块，避免产生无检索价值的碎块
	if len(cur) > 0 && curLen < c.config.MinChunkSize && len(chunks) > 0 {
		c.mergeIntoLast(&chunks[len(chunks)-1], cur)
	} else {
		flush()
	}

	return chunks
}

// collectParagraphs 将页面文本规范化并按段落切开，记录每个段落的页码
func (c *Chunker) collectParagraphs(pages []models.Page) []paragraph {
	var result []paragraph

	for _, page := range pages {
		text := strings.ReplaceAll(page.Text, "\r\n", "\n")
		text = strings.ReplaceAll(text, "\r", "\n")

		for _, p := range paragraphPattern.Split(text, -1) {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			result = append(result, paragraph{text: p, page: page.Number})
		}
	}

	return result
}

// buildChunk 从积累的段落构造分块，并附加来自上一分块的重叠前缀
func (c *Chunker) buildChunk(doc models.DocumentContent, paras []paragraph, prev []models.Chunk, offset int, position int) models.Chunk {
	texts := make([]string, len(paras))
	for i, p := range paras {
		texts[i] = p.text
	}
	core := strings.Join(texts, "\n\n")

	text := core
	overlapLen := 0
	if position > 0 && c.config.ChunkOverlap > 0 {
		tail := overlapTail(prev[position-1].CoreText(), c.config.ChunkOverlap)
		if tail != "" {
			text = tail + "\n\n" + core
			overlapLen = len(tail) + 2
		}
	}

	return models.Chunk{
		ID:          fmt.Sprintf("%s_%d", doc.ID, position),
		DocumentID:  doc.ID,
		FileName:    doc.FileName,
		Position:    position,
		Text:        text,
		OverlapLen:  overlapLen,
		StartPage:   paras[0].page,
		EndPage:     paras[len(paras)-1].page,
		StartOffset: offset,
		CharCount:   len(text),
	}
}

// mergeIntoLast 将剩余段落并入最后一个分块
func (c *Chunker) mergeIntoLast(last *models.Chunk, paras []paragraph) {
	for _, p := range paras {
		last.Text += "\n\n" + p.text
		if p.page > last.EndPage {
			last.EndPage = p.page
		}
	}
	last.CharCount = len(last.Text)
}

// 重叠区内用于定位句子起点的分隔符
var sentenceBoundaryPattern = regexp.MustCompile(`(?:[.!?。！？]\s+|\n)`)

// overlapTail 返回文本末尾的重叠区域
// 截取末尾size个字符后，尽量前移到最近的句子起点，避免重叠区从句子中间开始
func overlapTail(text string, size int) string {
	if text == "" || size <= 0 {
		return ""
	}
	if len(text) <= size {
		return text
	}

	start := len(text) - size
	// 不从多字节字符中间切开
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	tail := text[start:]

	// 对齐到重叠窗口内最近的句子边界
	if loc := sentenceBoundaryPattern.FindStringIndex(tail); loc != nil && loc[1] < len(tail) {
		aligned := strings.TrimLeft(tail[loc[1]:], " \t\n")
		if aligned != "" {
			return aligned
		}
	}

	return tail
}
