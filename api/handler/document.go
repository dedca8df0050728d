package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyerfyer/doc-retrieval-engine/api/middleware"
	"github.com/fyerfyer/doc-retrieval-engine/api/model"
	"github.com/fyerfyer/doc-retrieval-engine/internal/document"
	"github.com/fyerfyer/doc-retrieval-engine/internal/models"
	"github.com/fyerfyer/doc-retrieval-engine/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DocumentHandler 处理文档相关的API请求
type DocumentHandler struct {
	documentService *services.DocumentService // 文档服务
	logger          *logrus.Logger            // 日志记录器
}

// NewDocumentHandler 创建新的文档处理器
func NewDocumentHandler(documentService *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          middleware.GetLogger(),
	}
}

// UploadDocument 处理文档上传请求
// POST /api/documents
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	var req model.DocumentUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid document upload request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	filename := req.File.Filename
	if !isValidFileType(filepath.Ext(filename)) {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"不支持的文件类型，仅支持 .pdf, .md, .markdown, .txt",
		))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		h.logger.WithError(err).WithField("filename", filename).Error("Failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"无法打开上传的文件",
		))
		return
	}
	defer file.Close()

	doc, err := h.documentService.UploadDocument(c.Request.Context(), file, filename)
	if err != nil {
		if errors.Is(err, document.ErrUnsupportedType) {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse(
				http.StatusBadRequest,
				"不支持的文件类型",
			))
			return
		}

		h.logger.WithError(err).WithField("filename", filename).Error("Failed to upload document")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"文档上传失败",
		))
		return
	}

	// 上传时携带的标签写回文档记录
	if req.Tags != "" {
		doc.Tags = strings.TrimSpace(req.Tags)
		if err := h.documentService.UpdateDocumentTags(c.Request.Context(), doc.ID, doc.Tags); err != nil {
			h.logger.WithError(err).WithField("document_id", doc.ID).Warn("Failed to save document tags")
		}
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentUploadResponse{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		Status:     string(doc.Status),
	}))
}

// GetDocumentStatus 获取文档处理状态
// GET /api/documents/:id/status
func (h *DocumentHandler) GetDocumentStatus(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	doc, err := h.documentService.GetDocument(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "文档不存在"))
			return
		}

		h.logger.WithError(err).WithField("document_id", req.ID).Error("Failed to get document")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取文档信息失败",
		))
		return
	}

	resp := model.DocumentStatusResponse{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		Status:     string(doc.Status),
		Stage:      string(doc.CurrentStage),
		PageCount:  doc.PageCount,
		ChunkCount: doc.ChunkCount,
		Error:      doc.Error,
		UploadedAt: doc.UploadedAt.Format(time.RFC3339),
		UpdatedAt:  doc.UpdatedAt.Format(time.RFC3339),
	}
	if doc.ProcessedAt != nil {
		resp.ProcessedAt = doc.ProcessedAt.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ListDocuments 获取文档列表
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的查询参数"))
		return
	}

	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.Tags != "" {
		filters["tags"] = req.Tags
	}
	if req.FileName != "" {
		filters["file_name"] = req.FileName
	}
	if req.StartTime != nil {
		filters["start_time"] = req.StartTime.Format(time.RFC3339)
	}
	if req.EndTime != nil {
		filters["end_time"] = req.EndTime.Format(time.RFC3339)
	}

	page := req.GetPage()
	pageSize := req.GetPageSize()
	offset := (page - 1) * pageSize

	docs, total, err := h.documentService.ListDocuments(c.Request.Context(), offset, pageSize, filters)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list documents")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取文档列表失败",
		))
		return
	}

	infos := make([]model.DocumentInfo, len(docs))
	for i, doc := range docs {
		infos[i] = model.ConvertToDocumentInfo(doc)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentListResponse{
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
		Documents: infos,
	}))
}

// GetDocumentChunks 获取文档的分块列表
// GET /api/documents/:id/chunks
func (h *DocumentHandler) GetDocumentChunks(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	chunks, err := h.documentService.GetDocumentChunks(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "文档不存在"))
			return
		}

		h.logger.WithError(err).WithField("document_id", req.ID).Error("Failed to get document chunks")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取文档分块失败",
		))
		return
	}

	infos := make([]model.ChunkInfo, len(chunks))
	for i, chunk := range chunks {
		infos[i] = model.ChunkInfo{
			ChunkID:    chunk.ChunkID,
			Position:   chunk.Position,
			Text:       chunk.Text,
			StartPage:  chunk.StartPage,
			EndPage:    chunk.EndPage,
			CharCount:  chunk.CharCount,
			OverlapLen: chunk.OverlapLen,
		}
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentChunksResponse{
		DocumentID: req.ID,
		Count:      len(infos),
		Chunks:     infos,
	}))
}

// DeleteDocument 删除文档
// DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	err := h.documentService.DeleteDocument(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "文档不存在"))
			return
		}

		h.logger.WithError(err).WithField("document_id", req.ID).Error("Failed to delete document")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"删除文档失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentDeleteResponse{
		Success:    true,
		DocumentID: req.ID,
	}))
}

// isValidFileType 检查文件类型是否有效
func isValidFileType(ext string) bool {
	validTypes := map[string]bool{
		".pdf":      true,
		".md":       true,
		".markdown": true,
		".txt":      true,
	}
	return validTypes[strings.ToLower(ext)]
}
