package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fyerfyer/doc-retrieval-engine/internal/document"
	"github.com/fyerfyer/doc-retrieval-engine/internal/models"
	"github.com/fyerfyer/doc-retrieval-engine/internal/repository"
	"github.com/fyerfyer/doc-retrieval-engine/pkg/storage"
	"github.com/fyerfyer/doc-retrieval-engine/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// DocumentService 文档服务
// 负责协调文档上传、解析、分块入库和索引重建的触发
type DocumentService struct {
	storage       storage.Storage               // 文件存储服务
	chunker       *document.Chunker             // 文档分块器
	repo          repository.DocumentRepository // 文档元数据存储
	taskQueue     taskqueue.Queue               // 任务队列
	searchService *SearchService                // 检索服务，同步模式下直接触发重建
	asyncEnabled  bool                          // 是否启用异步处理
	timeout       time.Duration                 // 处理超时时间
	logger        *logrus.Logger                // 日志记录器
}

// DocumentOption 文档服务配置选项
type DocumentOption func(*DocumentService)

// NewDocumentService 创建一个新的文档服务
func NewDocumentService(
	store storage.Storage,
	chunker *document.Chunker,
	repo repository.DocumentRepository,
	opts ...DocumentOption,
) *DocumentService {
	srv := &DocumentService{
		storage:      store,
		chunker:      chunker,
		repo:         repo,
		timeout:      time.Minute * 5,
		logger:       logrus.New(),
		asyncEnabled: false,
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithTimeout 设置处理超时时间
func WithTimeout(timeout time.Duration) DocumentOption {
	return func(s *DocumentService) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) DocumentOption {
	return func(s *DocumentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTaskQueue 设置任务队列
func WithTaskQueue(queue taskqueue.Queue) DocumentOption {
	return func(s *DocumentService) {
		s.taskQueue = queue
		s.asyncEnabled = queue != nil
	}
}

// WithAsyncProcessing 设置是否启用异步处理
func WithAsyncProcessing(enabled bool) DocumentOption {
	return func(s *DocumentService) {
		s.asyncEnabled = enabled
	}
}

// WithSearchService 设置检索服务
func WithSearchService(search *SearchService) DocumentOption {
	return func(s *DocumentService) {
		s.searchService = search
	}
}

// UploadDocument 上传文档并触发处理
// 异步模式下将处理任务入队后立即返回；
// 同步模式下在当前调用中完成解析、分块和索引重建
func (s *DocumentService) UploadDocument(ctx context.Context, reader io.Reader, filename string) (*models.Document, error) {
	if filename == "" {
		return nil, errors.New("filename cannot be empty")
	}

	// 存文件之前先确认类型受支持
	if _, err := document.ParserFactory(filename); err != nil {
		return nil, err
	}

	info, err := s.storage.Save(reader, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	doc := &models.Document{
		ID:       info.ID,
		FileName: filename,
		FileType: fileType,
		FilePath: info.Path,
		FileSize: info.Size,
		Status:   models.DocStatusUploaded,
	}

	if err := s.repo.Create(doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"file_name":   filename,
		"file_size":   info.Size,
	}).Info("Document uploaded")

	if s.asyncEnabled && s.taskQueue != nil {
		payload := taskqueue.ProcessDocumentPayload{
			FilePath: info.Path,
			FileName: filename,
			FileType: fileType,
		}

		taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskProcessDocument, doc.ID, payload)
		if err != nil {
			s.failDocument(doc.ID, fmt.Sprintf("failed to enqueue processing task: %v", err))
			return nil, fmt.Errorf("failed to enqueue processing task: %w", err)
		}

		s.logger.WithFields(logrus.Fields{
			"document_id": doc.ID,
			"task_id":     taskID,
		}).Info("Document processing task enqueued")

		return doc, nil
	}

	if err := s.ProcessDocument(ctx, doc.ID); err != nil {
		return doc, err
	}

	return s.repo.GetByID(doc.ID)
}

// ProcessDocument 处理文档（解析、分块、入库并触发索引重建）
// 可重复调用，重新处理会替换该文档已有的分块
func (s *DocumentService) ProcessDocument(ctx context.Context, docID string) error {
	if docID == "" {
		return errors.New("document ID cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.WithField("document_id", docID).Info("Starting document processing")

	doc, err := s.repo.GetByID(docID)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(docID, models.DocStatusProcessing, ""); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as processing")
	}

	// 解析阶段
	if err := s.repo.UpdateStage(docID, models.StageParsing); err != nil {
		s.logger.WithError(err).Warn("Failed to update document stage")
	}

	pages, err := s.parseDocument(docID, doc.FileName)
	if err != nil {
		s.failDocument(docID, fmt.Sprintf("failed to parse document: %v", err))
		return fmt.Errorf("failed to parse document: %w", err)
	}

	if err := ctx.Err(); err != nil {
		s.failDocument(docID, "processing cancelled")
		return err
	}

	// 分块阶段
	if err := s.repo.UpdateStage(docID, models.StageChunking); err != nil {
		s.logger.WithError(err).Warn("Failed to update document stage")
	}

	content := models.DocumentContent{
		ID:       docID,
		FileName: doc.FileName,
		Pages:    pages,
	}
	chunks := s.chunker.ChunkDocument(content)

	if err := s.saveChunks(docID, chunks); err != nil {
		s.failDocument(docID, fmt.Sprintf("failed to save chunks: %v", err))
		return fmt.Errorf("failed to save chunks: %w", err)
	}

	doc.PageCount = len(pages)
	doc.ChunkCount = len(chunks)
	doc.Status = models.DocStatusProcessing
	doc.CurrentStage = models.StageChunking
	if err := s.repo.Update(doc); err != nil {
		s.logger.WithError(err).Warn("Failed to update document counters")
	}

	if err := ctx.Err(); err != nil {
		s.failDocument(docID, "processing cancelled")
		return err
	}

	// 索引阶段
	if err := s.repo.UpdateStage(docID, models.StageIndexing); err != nil {
		s.logger.WithError(err).Warn("Failed to update document stage")
	}

	if err := s.triggerIndexRebuild(ctx, fmt.Sprintf("document %s processed", docID)); err != nil {
		s.failDocument(docID, fmt.Sprintf("failed to rebuild index: %v", err))
		return fmt.Errorf("failed to rebuild index: %w", err)
	}

	if err := s.repo.UpdateStatus(docID, models.DocStatusIndexed, ""); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as indexed")
	}
	if err := s.repo.UpdateStage(docID, models.StageCompleted); err != nil {
		s.logger.WithError(err).Warn("Failed to update document stage")
	}

	s.logger.WithFields(logrus.Fields{
		"document_id": docID,
		"page_count":  len(pages),
		"chunk_count": len(chunks),
	}).Info("Document processing completed")

	return nil
}

// DeleteDocument 删除文档及其相关数据
func (s *DocumentService) DeleteDocument(ctx context.Context, docID string) error {
	if docID == "" {
		return errors.New("document ID cannot be empty")
	}

	s.logger.WithField("document_id", docID).Info("Deleting document")

	// 先确认文档存在
	if _, err := s.repo.GetByID(docID); err != nil {
		return err
	}

	// 存储中的文件可能已被清理，删除失败只记录
	if err := s.storage.Delete(docID); err != nil {
		s.logger.WithError(err).Warn("Failed to delete file from storage")
	}

	if err := s.repo.Delete(docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	// 分块语料已变化，触发索引重建让旧分块从检索结果中消失
	if err := s.triggerIndexRebuild(ctx, fmt.Sprintf("document %s deleted", docID)); err != nil {
		return fmt.Errorf("failed to rebuild index after deletion: %w", err)
	}

	s.logger.WithField("document_id", docID).Info("Document deleted")
	return nil
}

// GetDocument 获取文档信息
func (s *DocumentService) GetDocument(ctx context.Context, docID string) (*models.Document, error) {
	return s.repo.GetByID(docID)
}

// ListDocuments 获取文档列表
func (s *DocumentService) ListDocuments(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	return s.repo.List(offset, limit, filters)
}

// GetDocumentChunks 获取文档的分块列表
func (s *DocumentService) GetDocumentChunks(ctx context.Context, docID string) ([]*models.DocumentChunk, error) {
	if _, err := s.repo.GetByID(docID); err != nil {
		return nil, err
	}
	return s.repo.GetChunks(docID)
}

// UpdateDocumentTags 更新文档标签
func (s *DocumentService) UpdateDocumentTags(ctx context.Context, docID string, tags string) error {
	doc, err := s.repo.GetByID(docID)
	if err != nil {
		return err
	}

	doc.Tags = tags
	return s.repo.Update(doc)
}

// GetDocumentTasks 获取文档相关的任务
func (s *DocumentService) GetDocumentTasks(ctx context.Context, docID string) ([]*taskqueue.Task, error) {
	if s.taskQueue == nil {
		return nil, errors.New("task queue not configured")
	}
	return s.taskQueue.GetTasksByDocument(ctx, docID)
}

// parseDocument 从存储读取文件并解析为页面列表
// 含非法UTF-8编码的页面会被跳过，不中断整个文档的处理
func (s *DocumentService) parseDocument(docID string, fileName string) ([]models.Page, error) {
	reader, err := s.storage.Get(docID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file from storage: %w", err)
	}
	defer reader.Close()

	parser, err := document.ParserFactory(fileName)
	if err != nil {
		return nil, err
	}

	pages, err := parser.ParseReader(reader, fileName)
	if err != nil {
		return nil, err
	}

	valid := pages[:0]
	for _, page := range pages {
		if !utf8.ValidString(page.Text) {
			s.logger.WithFields(logrus.Fields{
				"document_id": docID,
				"page":        page.Number,
			}).Warn("Skipping page with invalid UTF-8 content")
			continue
		}
		valid = append(valid, page)
	}

	return valid, nil
}

// saveChunks 将分块写入仓储，替换该文档已有的分块
func (s *DocumentService) saveChunks(docID string, chunks []models.Chunk) error {
	if err := s.repo.DeleteChunks(docID); err != nil {
		return fmt.Errorf("failed to delete existing chunks: %w", err)
	}

	if len(chunks) == 0 {
		return nil
	}

	records := make([]*models.DocumentChunk, len(chunks))
	for i, chunk := range chunks {
		records[i] = &models.DocumentChunk{
			DocumentID:  chunk.DocumentID,
			ChunkID:     chunk.ID,
			Position:    chunk.Position,
			Text:        chunk.Text,
			OverlapLen:  chunk.OverlapLen,
			StartPage:   chunk.StartPage,
			EndPage:     chunk.EndPage,
			StartOffset: chunk.StartOffset,
			CharCount:   chunk.CharCount,
		}
	}

	return s.repo.SaveChunks(records)
}

// triggerIndexRebuild 触发索引重建
// 异步模式下入队重建任务，同步模式下直接通过检索服务重建
func (s *DocumentService) triggerIndexRebuild(ctx context.Context, reason string) error {
	if s.asyncEnabled && s.taskQueue != nil {
		payload := taskqueue.RebuildIndexPayload{Reason: reason}
		taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskRebuildIndex, "", payload)
		if err != nil {
			return fmt.Errorf("failed to enqueue index rebuild task: %w", err)
		}

		s.logger.WithFields(logrus.Fields{
			"task_id": taskID,
			"reason":  reason,
		}).Info("Index rebuild task enqueued")
		return nil
	}

	if s.searchService == nil {
		s.logger.Warn("No search service configured, skipping index rebuild")
		return nil
	}

	_, err := s.searchService.RebuildIndex(ctx)
	return err
}

// failDocument 将文档标记为失败状态
func (s *DocumentService) failDocument(docID string, errorMsg string) {
	if err := s.repo.UpdateStatus(docID, models.DocStatusFailed, errorMsg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"document_id": docID,
			"error":       err,
		}).Error("Failed to mark document as failed")
	}
}
