package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupQueueTest 创建一个连接miniredis的队列实例
func setupQueueTest(t *testing.T) Queue {
	mr := miniredis.RunT(t)

	cfg := &Config{
		RedisAddr:   mr.Addr(),
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })
	return queue
}

// TestRedisQueue_Enqueue 测试队列入队功能
func TestRedisQueue_Enqueue(t *testing.T) {
	queue := setupQueueTest(t)
	ctx := context.Background()

	payload := &ProcessDocumentPayload{
		FilePath: "/path/to/document.pdf",
		FileName: "document.pdf",
		FileType: "pdf",
	}

	taskID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-123", payload)
	assert.NoError(t, err)
	assert.NotEmpty(t, taskID)

	// 验证任务已入队
	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, TaskProcessDocument, task.Type)
	assert.Equal(t, "doc-123", task.DocumentID)
	assert.Equal(t, StatusPending, task.Status)

	// 验证载荷内容
	var decoded ProcessDocumentPayload
	require.NoError(t, UnmarshalPayload(task.Payload, &decoded))
	assert.Equal(t, "document.pdf", decoded.FileName)
}

// TestRedisQueue_GetTask 测试任务查询
func TestRedisQueue_GetTask(t *testing.T) {
	queue := setupQueueTest(t)
	ctx := context.Background()

	// 不存在的任务
	_, err := queue.GetTask(ctx, "non-existent-task")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	// 索引重建任务没有关联文档
	taskID, err := queue.Enqueue(ctx, TaskRebuildIndex, "", &RebuildIndexPayload{Reason: "document added"})
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, TaskRebuildIndex, task.Type)
	assert.Empty(t, task.DocumentID)
}

// TestRedisQueue_UpdateTaskStatus 测试任务状态更新
func TestRedisQueue_UpdateTaskStatus(t *testing.T) {
	queue := setupQueueTest(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-456", nil)
	require.NoError(t, err)

	// 更新为处理中
	err = queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, "")
	assert.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	assert.NotNil(t, task.StartedAt, "进入处理中状态时应记录开始时间")

	// 更新为完成，附带结果
	result := &ProcessDocumentResult{DocumentID: "doc-456", PageCount: 3, ChunkCount: 12}
	err = queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, "")
	assert.NoError(t, err)

	task, err = queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt, "完成时应记录完成时间")

	var decoded ProcessDocumentResult
	require.NoError(t, UnmarshalPayload(task.Result, &decoded))
	assert.Equal(t, 12, decoded.ChunkCount)

	// 失败状态应记录错误信息
	failedID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-789", nil)
	require.NoError(t, err)

	err = queue.UpdateTaskStatus(ctx, failedID, StatusFailed, nil, "parse error")
	assert.NoError(t, err)

	task, err = queue.GetTask(ctx, failedID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "parse error", task.Error)
}

// TestRedisQueue_GetTasksByDocument 测试按文档查询任务
func TestRedisQueue_GetTasksByDocument(t *testing.T) {
	queue := setupQueueTest(t)
	ctx := context.Background()

	id1, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-abc", nil)
	require.NoError(t, err)
	id2, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-abc", nil)
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, TaskProcessDocument, "doc-other", nil)
	require.NoError(t, err)

	tasks, err := queue.GetTasksByDocument(ctx, "doc-abc")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	ids := map[string]bool{}
	for _, task := range tasks {
		ids[task.ID] = true
		assert.Equal(t, "doc-abc", task.DocumentID)
	}
	assert.True(t, ids[id1])
	assert.True(t, ids[id2])

	// 没有任务的文档返回空列表
	tasks, err = queue.GetTasksByDocument(ctx, "doc-none")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestRedisQueue_DeleteTask 测试任务删除
func TestRedisQueue_DeleteTask(t *testing.T) {
	queue := setupQueueTest(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-del", nil)
	require.NoError(t, err)

	err = queue.DeleteTask(ctx, taskID)
	assert.NoError(t, err)

	_, err = queue.GetTask(ctx, taskID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	tasks, err := queue.GetTasksByDocument(ctx, "doc-del")
	require.NoError(t, err)
	assert.Empty(t, tasks, "删除后任务不应再出现在文档任务集合中")
}

// TestRedisQueue_WaitForTask 测试任务等待
func TestRedisQueue_WaitForTask(t *testing.T) {
	queue := setupQueueTest(t)
	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-wait", nil)
	require.NoError(t, err)

	// 已完成的任务应立即返回
	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, nil, ""))

	task, err := queue.WaitForTask(ctx, taskID, time.Second*5)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)

	// 未完成的任务应在超时后返回错误
	pendingID, err := queue.Enqueue(ctx, TaskProcessDocument, "doc-pending", nil)
	require.NoError(t, err)

	_, err = queue.WaitForTask(ctx, pendingID, time.Millisecond*100)
	assert.ErrorIs(t, err, ErrTaskTimeout)
}

// TestQueueFactory 测试队列工厂
func TestQueueFactory(t *testing.T) {
	mr := miniredis.RunT(t)

	queue, err := NewQueue("redis", &Config{
		RedisAddr:   mr.Addr(),
		Concurrency: 1,
		RetryLimit:  1,
		RetryDelay:  time.Second,
	})
	require.NoError(t, err)
	assert.NotNil(t, queue)
	queue.Close()

	_, err = NewQueue("unknown", nil)
	assert.Error(t, err, "未注册的队列实现应返回错误")
}
