package services

import (
	"context"
	"fmt"

	"github.com/fyerfyer/doc-retrieval-engine/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// TaskProcessor 任务处理器
// 在工作者进程中执行文档处理和索引重建任务
type TaskProcessor struct {
	docService    *DocumentService
	searchService *SearchService
	queue         taskqueue.Queue
	logger        *logrus.Logger
}

// NewTaskProcessor 创建任务处理器实例
func NewTaskProcessor(
	docService *DocumentService,
	searchService *SearchService,
	queue taskqueue.Queue,
	logger *logrus.Logger,
) *TaskProcessor {
	if logger == nil {
		logger = logrus.New()
	}

	return &TaskProcessor{
		docService:    docService,
		searchService: searchService,
		queue:         queue,
		logger:        logger,
	}
}

// GetTaskTypes 返回此处理器支持的任务类型
func (p *TaskProcessor) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{
		taskqueue.TaskProcessDocument,
		taskqueue.TaskRebuildIndex,
	}
}

// ProcessTask 处理任务
func (p *TaskProcessor) ProcessTask(ctx context.Context, task *taskqueue.Task) error {
	p.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"task_type":   task.Type,
		"document_id": task.DocumentID,
	}).Info("Processing task")

	switch task.Type {
	case taskqueue.TaskProcessDocument:
		return p.handleProcessDocument(ctx, task)
	case taskqueue.TaskRebuildIndex:
		return p.handleRebuildIndex(ctx, task)
	default:
		return fmt.Errorf("unsupported task type: %s", task.Type)
	}
}

// handleProcessDocument 执行文档处理任务
func (p *TaskProcessor) handleProcessDocument(ctx context.Context, task *taskqueue.Task) error {
	var payload taskqueue.ProcessDocumentPayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("invalid process document payload: %w", err)
	}

	if err := p.docService.ProcessDocument(ctx, task.DocumentID); err != nil {
		return err
	}

	// 记录处理结果，状态终态由工作者统一写入
	doc, err := p.docService.GetDocument(ctx, task.DocumentID)
	if err == nil && p.queue != nil {
		result := taskqueue.ProcessDocumentResult{
			DocumentID: doc.ID,
			PageCount:  doc.PageCount,
			ChunkCount: doc.ChunkCount,
		}
		if err := p.queue.UpdateTaskStatus(ctx, task.ID, taskqueue.StatusProcessing, result, ""); err != nil {
			p.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to record task result")
		}
	}

	return nil
}

// handleRebuildIndex 执行索引重建任务
func (p *TaskProcessor) handleRebuildIndex(ctx context.Context, task *taskqueue.Task) error {
	var payload taskqueue.RebuildIndexPayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("invalid rebuild index payload: %w", err)
	}

	stats, err := p.searchService.RebuildIndex(ctx)
	if err != nil {
		return err
	}

	if p.queue != nil {
		result := taskqueue.RebuildIndexResult{
			ChunkCount:     stats.ChunkCount,
			DocumentCount:  stats.DocumentCount,
			VocabularySize: stats.VocabularySize,
		}
		if err := p.queue.UpdateTaskStatus(ctx, task.ID, taskqueue.StatusProcessing, result, ""); err != nil {
			p.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to record task result")
		}
	}

	return nil
}
