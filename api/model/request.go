package model

import (
	"mime/multipart"
	"time"
)

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// DocumentUploadRequest 文档上传请求
type DocumentUploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"`      // 文件对象
	Tags string                `form:"tags" binding:"omitempty"`     // 文档标签，逗号分隔
}

// DocumentIDRequest 按ID操作文档的请求
type DocumentIDRequest struct {
	ID string `uri:"id" binding:"required"` // 文档ID
}

// DocumentListRequest 文档列表请求
type DocumentListRequest struct {
	PaginationRequest
	StartTime *time.Time `form:"start_time" binding:"omitempty"` // 开始时间
	EndTime   *time.Time `form:"end_time" binding:"omitempty"`   // 结束时间
	Status    string     `form:"status" binding:"omitempty"`     // 文档状态
	Tags      string     `form:"tags" binding:"omitempty"`       // 标签过滤
	FileName  string     `form:"file_name" binding:"omitempty"`  // 文件名过滤
}

// SearchRequest 检索请求
type SearchRequest struct {
	Query      string `json:"query" binding:"required"`                    // 查询文本
	DocumentID string `json:"document_id" binding:"omitempty"`             // 可选，限定在单个文档内检索
	MaxResults int    `json:"max_results" binding:"omitempty,min=1,max=50"` // 可选，最大返回结果数
}
