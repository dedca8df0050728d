package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/fyerfyer/doc-retrieval-engine/api/middleware"
	"github.com/fyerfyer/doc-retrieval-engine/api/model"
	"github.com/fyerfyer/doc-retrieval-engine/internal/models"
	"github.com/fyerfyer/doc-retrieval-engine/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SearchHandler 处理检索相关的API请求
type SearchHandler struct {
	searchService *services.SearchService // 检索服务
	logger        *logrus.Logger          // 日志记录器
}

// NewSearchHandler 创建新的检索处理器
func NewSearchHandler(searchService *services.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		logger:        middleware.GetLogger(),
	}
}

// Search 处理检索请求
// POST /api/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid search request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	results, err := h.searchService.Search(c.Request.Context(), req.Query, req.DocumentID, req.MaxResults)
	if err != nil {
		if errors.Is(err, models.ErrIndexNotBuilt) {
			c.JSON(http.StatusServiceUnavailable, model.NewErrorResponse(
				http.StatusServiceUnavailable,
				"索引尚未构建，请先上传文档或重建索引",
			))
			return
		}

		h.logger.WithError(err).WithField("query", req.Query).Error("Search failed")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"检索失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.SearchResponse{
		Query:   req.Query,
		Count:   len(results),
		Results: model.ConvertToSearchResults(results),
	}))
}

// GetIndexStats 获取索引统计信息
// GET /api/index/stats
func (h *SearchHandler) GetIndexStats(c *gin.Context) {
	stats, err := h.searchService.Stats()
	if err != nil {
		if errors.Is(err, models.ErrIndexNotBuilt) {
			c.JSON(http.StatusServiceUnavailable, model.NewErrorResponse(
				http.StatusServiceUnavailable,
				"索引尚未构建",
			))
			return
		}

		h.logger.WithError(err).Error("Failed to get index stats")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取索引统计失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.IndexStatsResponse{
		ChunkCount:     stats.ChunkCount,
		DocumentCount:  stats.DocumentCount,
		VocabularySize: stats.VocabularySize,
		BuiltAt:        stats.BuiltAt.Format(time.RFC3339),
	}))
}

// RebuildIndex 手动触发索引重建
// POST /api/index/rebuild
func (h *SearchHandler) RebuildIndex(c *gin.Context) {
	stats, err := h.searchService.RebuildIndex(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to rebuild index")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"索引重建失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.IndexStatsResponse{
		ChunkCount:     stats.ChunkCount,
		DocumentCount:  stats.DocumentCount,
		VocabularySize: stats.VocabularySize,
		BuiltAt:        stats.BuiltAt.Format(time.RFC3339),
	}))
}
