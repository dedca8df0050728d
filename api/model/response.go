package model

import (
	"time"

	"github.com/fyerfyer/doc-retrieval-engine/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// DocumentUploadResponse 文档上传响应
type DocumentUploadResponse struct {
	DocumentID string `json:"document_id"` // 文档ID
	FileName   string `json:"filename"`    // 文件名
	Status     string `json:"status"`      // 文档状态
}

// DocumentStatusResponse 文档状态查询响应
type DocumentStatusResponse struct {
	DocumentID  string `json:"document_id"`            // 文档ID
	FileName    string `json:"filename"`               // 文件名
	Status      string `json:"status"`                 // 处理状态
	Stage       string `json:"stage,omitempty"`        // 当前处理阶段
	PageCount   int    `json:"page_count"`             // 页数
	ChunkCount  int    `json:"chunk_count"`            // 分块数量
	Error       string `json:"error,omitempty"`        // 错误信息（如果有）
	UploadedAt  string `json:"uploaded_at"`            // 上传时间
	UpdatedAt   string `json:"updated_at"`             // 更新时间
	ProcessedAt string `json:"processed_at,omitempty"` // 处理完成时间
}

// DocumentInfo 文档信息
type DocumentInfo struct {
	DocumentID string    `json:"document_id"` // 文档ID
	FileName   string    `json:"filename"`    // 文件名
	FileType   string    `json:"file_type"`   // 文件类型
	FileSize   int64     `json:"file_size"`   // 文件大小
	Status     string    `json:"status"`      // 状态
	Tags       string    `json:"tags"`        // 标签
	UploadedAt time.Time `json:"uploaded_at"` // 上传时间
	ChunkCount int       `json:"chunk_count"` // 分块数量
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Total     int64          `json:"total"`     // 总数量
	Page      int            `json:"page"`      // 当前页码
	PageSize  int            `json:"page_size"` // 每页大小
	Documents []DocumentInfo `json:"documents"` // 文档列表
}

// DocumentDeleteResponse 文档删除响应
type DocumentDeleteResponse struct {
	Success    bool   `json:"success"`     // 是否成功
	DocumentID string `json:"document_id"` // 文档ID
}

// ChunkInfo 分块信息
type ChunkInfo struct {
	ChunkID    string `json:"chunk_id"`    // 分块ID
	Position   int    `json:"position"`    // 分块序号
	Text       string `json:"text"`        // 分块文本
	StartPage  int    `json:"start_page"`  // 起始页码
	EndPage    int    `json:"end_page"`    // 结束页码
	CharCount  int    `json:"char_count"`  // 字符数
	OverlapLen int    `json:"overlap_len"` // 重叠前缀长度
}

// DocumentChunksResponse 文档分块列表响应
type DocumentChunksResponse struct {
	DocumentID string      `json:"document_id"` // 文档ID
	Count      int         `json:"count"`       // 分块数量
	Chunks     []ChunkInfo `json:"chunks"`      // 分块列表
}

// SearchResultInfo 单条检索结果
type SearchResultInfo struct {
	ChunkID    string  `json:"chunk_id"`    // 分块ID
	DocumentID string  `json:"document_id"` // 所属文档ID
	FileName   string  `json:"filename"`    // 源文件名
	Position   int     `json:"position"`    // 分块序号
	Text       string  `json:"text"`        // 分块文本
	StartPage  int     `json:"start_page"`  // 起始页码
	EndPage    int     `json:"end_page"`    // 结束页码
	Score      float64 `json:"score"`       // 综合得分
	BaseScore  float64 `json:"base_score"`  // 基础相似度得分
}

// SearchResponse 检索响应
type SearchResponse struct {
	Query   string             `json:"query"`   // 原始查询
	Count   int                `json:"count"`   // 结果数量
	Results []SearchResultInfo `json:"results"` // 检索结果列表
}

// IndexStatsResponse 索引统计响应
type IndexStatsResponse struct {
	ChunkCount     int    `json:"chunk_count"`     // 分块总数
	DocumentCount  int    `json:"document_count"`  // 覆盖的文档数
	VocabularySize int    `json:"vocabulary_size"` // 词汇表大小
	BuiltAt        string `json:"built_at"`        // 构建时间
}

// ConvertToSearchResults 将检索结果转换为响应格式
func ConvertToSearchResults(results []models.ScoredResult) []SearchResultInfo {
	if len(results) == 0 {
		return []SearchResultInfo{}
	}

	infos := make([]SearchResultInfo, len(results))
	for i, res := range results {
		infos[i] = SearchResultInfo{
			ChunkID:    res.Chunk.ID,
			DocumentID: res.Chunk.DocumentID,
			FileName:   res.Chunk.FileName,
			Position:   res.Chunk.Position,
			Text:       res.Chunk.Text,
			StartPage:  res.Chunk.StartPage,
			EndPage:    res.Chunk.EndPage,
			Score:      res.Score,
			BaseScore:  res.BaseScore,
		}
	}
	return infos
}

// ConvertToDocumentInfo 将文档模型转换为响应格式
func ConvertToDocumentInfo(doc *models.Document) DocumentInfo {
	return DocumentInfo{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		FileType:   doc.FileType,
		FileSize:   doc.FileSize,
		Status:     string(doc.Status),
		Tags:       doc.Tags,
		UploadedAt: doc.UploadedAt,
		ChunkCount: doc.ChunkCount,
	}
}
