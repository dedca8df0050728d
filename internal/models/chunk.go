package models

// Page 文档中的单个页面
// 页码从1开始，文本为加载器提取后的UTF-8纯文本
type Page struct {
	Number int    // 页码
	Text   string // 页面文本内容
}

// DocumentContent 解析后的文档内容
// 分块器的输入，加载后不再修改
type DocumentContent struct {
	ID       string // 文档ID
	FileName string // 源文件名
	Pages    []Page // 按页码排列的页面列表
}

// Chunk 文档分块
// 索引和检索的原子单位
type Chunk struct {
	ID          string // 分块唯一ID
	DocumentID  string // 所属文档ID
	FileName    string // 源文件名
	Position    int    // 在文档内的序号（从0开始）
	Text        string // 分块文本，开头可能包含来自上一分块的重叠区
	OverlapLen  int    // Text开头重叠区的字节长度，首个分块为0
	StartPage   int    // 分块覆盖的起始页码
	EndPage     int    // 分块覆盖的结束页码
	StartOffset int    // 核心文本（不含重叠区）在文档规范化文本中的偏移
	CharCount   int    // 分块字符数
}

// CoreText 返回分块的核心文本（去掉开头的重叠区）
// 所有分块的核心文本按顺序拼接可还原文档的规范化文本
func (c Chunk) CoreText() string {
	if c.OverlapLen <= 0 || c.OverlapLen > len(c.Text) {
		return c.Text
	}
	return c.Text[c.OverlapLen:]
}

// ScoredResult 检索结果
// 每次查询时生成，不做持久化；索引重建后旧结果即失效
type ScoredResult struct {
	Chunk     Chunk   // 命中的分块
	Score     float64 // 重排后的综合得分
	BaseScore float64 // 索引返回的基础相似度得分（[0,1]）
}
