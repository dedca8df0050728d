package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/fyerfyer/doc-retrieval-engine/internal/database"
	"github.com/fyerfyer/doc-retrieval-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	// 使用唯一的内存数据库标识符
	dbName := fmt.Sprintf("file:memdb_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	// 运行迁移以创建所需的表
	err = db.AutoMigrate(&models.Document{}, &models.DocumentChunk{}, &models.DocumentTask{})
	require.NoError(t, err, "Failed to run migrations")

	// 替换全局DB为测试DB
	originalDB := database.DB
	database.DB = db

	cleanup := func() {
		database.DB = originalDB
	}

	return db, cleanup
}

// newTestDocument 构造测试文档记录
func newTestDocument(id string) *models.Document {
	return &models.Document{
		ID:       id,
		FileName: id + ".txt",
		FileType: "txt",
		FilePath: "/path/to/" + id + ".txt",
		FileSize: 1024,
		Status:   models.DocStatusUploaded,
	}
}

func TestDocumentRepository_Create(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	doc := newTestDocument("test-doc-1")
	doc.Tags = "test,document"

	err := repo.Create(doc)
	assert.NoError(t, err, "Document creation should succeed")

	// 验证文档已创建
	savedDoc, err := repo.GetByID(doc.ID)
	require.NoError(t, err, "Should be able to retrieve created document")
	assert.Equal(t, doc.ID, savedDoc.ID)
	assert.Equal(t, doc.FileName, savedDoc.FileName)
	assert.Equal(t, doc.Status, savedDoc.Status)
	assert.False(t, savedDoc.UploadedAt.IsZero(), "创建钩子应设置上传时间")

	// 空ID应被拒绝
	err = repo.Create(&models.Document{})
	assert.Error(t, err, "Creating document without ID should fail")
}

func TestDocumentRepository_GetByID(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	// 不存在的文档应返回ErrDocumentNotFound
	_, err := repo.GetByID("missing-doc")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	require.NoError(t, repo.Create(newTestDocument("doc-exists")))
	doc, err := repo.GetByID("doc-exists")
	require.NoError(t, err)
	assert.Equal(t, "doc-exists", doc.ID)
}

func TestDocumentRepository_UpdateStatus(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	require.NoError(t, repo.Create(newTestDocument("doc-status")))

	// 处理中
	err := repo.UpdateStatus("doc-status", models.DocStatusProcessing, "")
	assert.NoError(t, err)

	doc, err := repo.GetByID("doc-status")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessing, doc.Status)
	assert.Nil(t, doc.ProcessedAt, "非终态不应设置处理完成时间")

	// 已索引（终态）
	err = repo.UpdateStatus("doc-status", models.DocStatusIndexed, "")
	assert.NoError(t, err)

	doc, err = repo.GetByID("doc-status")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusIndexed, doc.Status)
	assert.NotNil(t, doc.ProcessedAt, "终态应设置处理完成时间")

	// 失败状态带错误信息
	require.NoError(t, repo.Create(newTestDocument("doc-failed")))
	err = repo.UpdateStatus("doc-failed", models.DocStatusFailed, "parse failure")
	assert.NoError(t, err)

	doc, err = repo.GetByID("doc-failed")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, doc.Status)
	assert.Equal(t, "parse failure", doc.Error)
}

func TestDocumentRepository_UpdateStage(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	require.NoError(t, repo.Create(newTestDocument("doc-stage")))

	require.NoError(t, repo.UpdateStage("doc-stage", models.StageChunking))

	doc, err := repo.GetByID("doc-stage")
	require.NoError(t, err)
	assert.Equal(t, models.StageChunking, doc.CurrentStage)
}

func TestDocumentRepository_List(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	for i := 0; i < 5; i++ {
		doc := newTestDocument(fmt.Sprintf("list-doc-%d", i))
		if i%2 == 0 {
			doc.Status = models.DocStatusIndexed
		}
		require.NoError(t, repo.Create(doc))
	}

	// 无过滤条件
	docs, total, err := repo.List(0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, docs, 5)

	// 状态过滤
	docs, total, err = repo.List(0, 10, map[string]interface{}{
		"status": models.DocStatusIndexed,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	for _, doc := range docs {
		assert.Equal(t, models.DocStatusIndexed, doc.Status)
	}

	// 分页
	docs, total, err = repo.List(0, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total, "分页不应影响总数")
	assert.Len(t, docs, 2)

	// 文件名过滤
	docs, _, err = repo.List(0, 10, map[string]interface{}{
		"file_name": "list-doc-3",
	})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDocumentRepository_Chunks(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	require.NoError(t, repo.Create(newTestDocument("doc-chunks")))

	chunks := []*models.DocumentChunk{
		{DocumentID: "doc-chunks", ChunkID: "doc-chunks_0", Position: 0, Text: "first chunk text", CharCount: 16, StartPage: 1, EndPage: 1},
		{DocumentID: "doc-chunks", ChunkID: "doc-chunks_1", Position: 1, Text: "second chunk text", CharCount: 17, StartPage: 1, EndPage: 2},
		{DocumentID: "doc-chunks", ChunkID: "doc-chunks_2", Position: 2, Text: "third chunk text", CharCount: 16, StartPage: 2, EndPage: 2},
	}
	require.NoError(t, repo.SaveChunks(chunks))

	// 空列表保存应为空操作
	assert.NoError(t, repo.SaveChunks(nil))

	// 按位置排序读取
	saved, err := repo.GetChunks("doc-chunks")
	require.NoError(t, err)
	require.Len(t, saved, 3)
	for i, chunk := range saved {
		assert.Equal(t, i, chunk.Position, "分块应按位置排序")
	}

	// 统计
	count, err := repo.CountChunks("doc-chunks")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// 删除
	require.NoError(t, repo.DeleteChunks("doc-chunks"))
	count, err = repo.CountChunks("doc-chunks")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDocumentRepository_ListAllChunks(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	require.NoError(t, repo.Create(newTestDocument("doc-a")))
	require.NoError(t, repo.Create(newTestDocument("doc-b")))

	require.NoError(t, repo.SaveChunks([]*models.DocumentChunk{
		{DocumentID: "doc-b", ChunkID: "doc-b_0", Position: 0, Text: "b zero"},
		{DocumentID: "doc-a", ChunkID: "doc-a_1", Position: 1, Text: "a one"},
		{DocumentID: "doc-a", ChunkID: "doc-a_0", Position: 0, Text: "a zero"},
	}))

	chunks, err := repo.ListAllChunks()
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	// 按文档ID和位置排序，索引重建结果与插入顺序无关
	assert.Equal(t, "doc-a_0", chunks[0].ChunkID)
	assert.Equal(t, "doc-a_1", chunks[1].ChunkID)
	assert.Equal(t, "doc-b_0", chunks[2].ChunkID)
}

func TestDocumentRepository_Delete(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	require.NoError(t, repo.Create(newTestDocument("doc-del")))
	require.NoError(t, repo.SaveChunks([]*models.DocumentChunk{
		{DocumentID: "doc-del", ChunkID: "doc-del_0", Position: 0, Text: "to be removed"},
	}))

	require.NoError(t, repo.Delete("doc-del"))

	_, err := repo.GetByID("doc-del")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	count, err := repo.CountChunks("doc-del")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "删除文档时应一并删除分块")
}
