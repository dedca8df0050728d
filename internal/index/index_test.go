package index

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fyerfyer/doc-retrieval-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeChunk 构造测试分块
func makeChunk(docID string, position int, text string) models.Chunk {
	return models.Chunk{
		ID:         fmt.Sprintf("%s_%d", docID, position),
		DocumentID: docID,
		Position:   position,
		Text:       text,
		CharCount:  len(text),
	}
}

// testCorpus 返回一个小型测试语料
func testCorpus() []models.Chunk {
	return []models.Chunk{
		makeChunk("doc1", 0, "The registered office of the company is in Mumbai."),
		makeChunk("doc1", 1, "Directors hold board meetings every quarter."),
		makeChunk("doc2", 0, "The cat sat on a mat near the window."),
	}
}

// TestBuildAndSearch 测试索引构建与查询
func TestBuildAndSearch(t *testing.T) {
	snap := Build(testCorpus(), DefaultOptions())

	t.Run("matching chunk is found", func(t *testing.T) {
		results := snap.Search("registered office", 10)
		require.Len(t, results, 1, "只有一个分块包含查询词项")
		assert.Equal(t, "doc1_0", results[0].Chunk.ID)
		assert.Greater(t, results[0].Score, 0.0)
	})

	t.Run("relevance ordering", func(t *testing.T) {
		chunks := []models.Chunk{
			makeChunk("d", 0, "registered office in mumbai"),
			makeChunk("d", 1, "office hours vary"),
			makeChunk("d", 2, "unrelated text entirely"),
		}
		s := Build(chunks, DefaultOptions())

		results := s.Search("registered office mumbai", 10)
		require.Len(t, results, 2, "不含任何查询词项的分块不应出现")
		assert.Equal(t, "d_0", results[0].Chunk.ID, "匹配更多词项的分块应排在前面")
		assert.Equal(t, "d_1", results[1].Chunk.ID)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("identical text scores near one", func(t *testing.T) {
		text := "quarterly compliance filing deadline"
		chunks := []models.Chunk{
			makeChunk("d", 0, text),
			makeChunk("d", 1, "completely different words here"),
		}
		s := Build(chunks, DefaultOptions())

		results := s.Search(text, 10)
		require.NotEmpty(t, results)
		assert.InDelta(t, 1.0, results[0].Score, 1e-9, "查询与分块相同文本时余弦相似度应为1")
	})

	t.Run("scores stay in range", func(t *testing.T) {
		results := snap.Search("registered office mumbai directors board cat mat window", 10)
		for _, r := range results {
			assert.GreaterOrEqual(t, r.Score, 0.0)
			assert.LessOrEqual(t, r.Score, 1.0)
			assert.Equal(t, r.Score, r.BaseScore, "索引层得分即基础余弦得分")
		}
	})

	t.Run("topK bounds result count", func(t *testing.T) {
		chunks := []models.Chunk{
			makeChunk("d", 0, "mumbai office alpha"),
			makeChunk("d", 1, "mumbai office beta"),
			makeChunk("d", 2, "mumbai office gamma"),
		}
		s := Build(chunks, DefaultOptions())

		results := s.Search("mumbai", 2)
		assert.Len(t, results, 2, "结果数量不应超过topK")

		assert.Empty(t, s.Search("mumbai", 0), "topK为0时应返回空结果")
	})

	t.Run("unknown query terms", func(t *testing.T) {
		results := snap.Search("zzzzz qqqqq", 10)
		assert.Empty(t, results, "词汇表外的查询词项应返回空结果")
	})

	t.Run("empty query", func(t *testing.T) {
		assert.Empty(t, snap.Search("", 10), "空查询应返回空结果")
	})
}

// TestSearchTieBreak 测试并列得分的确定性排序
func TestSearchTieBreak(t *testing.T) {
	chunks := []models.Chunk{
		makeChunk("d", 0, "alpha beta"),
		makeChunk("d", 1, "alpha beta"),
		makeChunk("d", 2, "gamma delta"),
	}
	snap := Build(chunks, DefaultOptions())

	results := snap.Search("alpha", 10)
	require.Len(t, results, 2)
	assert.InDelta(t, results[0].Score, results[1].Score, 1e-12, "相同文本的分块得分应相同")
	assert.Equal(t, "d_0", results[0].Chunk.ID, "并列得分时应按分块插入顺序排序")
	assert.Equal(t, "d_1", results[1].Chunk.ID)
}

// TestBuildDeterminism 测试重建索引的确定性
func TestBuildDeterminism(t *testing.T) {
	corpus := testCorpus()
	first := Build(corpus, DefaultOptions())
	second := Build(corpus, DefaultOptions())

	query := "registered office mumbai board meetings"
	r1 := first.Search(query, 10)
	r2 := second.Search(query, 10)

	require.Equal(t, len(r1), len(r2), "两次构建的查询结果数量应一致")
	for i := range r1 {
		assert.Equal(t, r1[i].Chunk.ID, r2[i].Chunk.ID, "结果顺序应一致")
		assert.InDelta(t, r1[i].Score, r2[i].Score, 1e-12, "得分应一致")
	}
}

// TestParallelBuild 测试大语料的并行构建
func TestParallelBuild(t *testing.T) {
	// 构造超过并行阈值的语料
	var chunks []models.Chunk
	for i := 0; i < parallelBuildThreshold+50; i++ {
		chunks = append(chunks, makeChunk("bulk", i, fmt.Sprintf("generic filler text number %d", i)))
	}
	chunks = append(chunks, makeChunk("target", 0, "registered office located in mumbai"))

	snap := Build(chunks, DefaultOptions())
	assert.Equal(t, len(chunks), snap.ChunkCount())

	results := snap.Search("mumbai", 5)
	require.NotEmpty(t, results, "并行构建的索引应能检索到目标分块")
	assert.Equal(t, "target_0", results[0].Chunk.ID)
}

// TestSnapshotStats 测试快照统计信息
func TestSnapshotStats(t *testing.T) {
	snap := Build(testCorpus(), DefaultOptions())

	assert.Equal(t, 3, snap.ChunkCount())
	assert.Equal(t, 2, snap.DocumentCount(), "语料覆盖两个文档")
	assert.Greater(t, snap.VocabularySize(), 0)
	assert.False(t, snap.BuiltAt().IsZero())
	assert.Len(t, snap.Chunks(), 3)
}

// TestIndexHandle 测试索引句柄的快照管理
func TestIndexHandle(t *testing.T) {
	t.Run("not built vs empty", func(t *testing.T) {
		idx := NewIndex(DefaultOptions())

		_, err := idx.Snapshot()
		assert.ErrorIs(t, err, models.ErrIndexNotBuilt, "从未构建的索引应返回ErrIndexNotBuilt")

		_, err = idx.Search("anything", 10)
		assert.ErrorIs(t, err, models.ErrIndexNotBuilt)

		// 用空语料构建后不再是"未构建"状态
		idx.Rebuild(nil)
		snap, err := idx.Snapshot()
		require.NoError(t, err, "空索引与未构建的索引应可区分")
		assert.Equal(t, 0, snap.ChunkCount())

		results, err := idx.Search("anything", 10)
		require.NoError(t, err)
		assert.Empty(t, results, "空索引查询应返回空结果而非错误")
	})

	t.Run("rebuild replaces snapshot", func(t *testing.T) {
		idx := NewIndex(DefaultOptions())
		idx.Rebuild(testCorpus())

		results, err := idx.Search("mumbai", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)

		// 重建为只包含其他内容的语料后，旧内容不应再被检索到
		idx.Rebuild([]models.Chunk{makeChunk("new", 0, "fresh corpus content")})
		results, err = idx.Search("mumbai", 10)
		require.NoError(t, err)
		assert.Empty(t, results, "重建后旧语料不应再出现在结果中")
	})
}

// TestSnapshotPersistence 测试快照的保存与载入
func TestSnapshotPersistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index", "snapshot.json")

	original := Build(testCorpus(), DefaultOptions())
	require.NoError(t, original.Save(path))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)

	assert.Equal(t, original.ChunkCount(), loaded.ChunkCount())
	assert.Equal(t, original.VocabularySize(), loaded.VocabularySize())

	query := "registered office mumbai"
	origResults := original.Search(query, 10)
	loadedResults := loaded.Search(query, 10)

	require.Equal(t, len(origResults), len(loadedResults), "载入的快照查询结果应与原始快照一致")
	for i := range origResults {
		assert.Equal(t, origResults[i].Chunk.ID, loadedResults[i].Chunk.ID)
		assert.InDelta(t, origResults[i].Score, loadedResults[i].Score, 1e-12)
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSnapshot(filepath.Join(dir, "does-not-exist.json"))
		assert.Error(t, err)
	})

	t.Run("corrupt file", func(t *testing.T) {
		corruptPath := filepath.Join(dir, "corrupt.json")
		require.NoError(t, os.WriteFile(corruptPath, []byte("{not valid json"), 0644))
		_, err := LoadSnapshot(corruptPath)
		assert.Error(t, err, "损坏的快照文件应返回错误")
	})
}
