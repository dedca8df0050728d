package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fyerfyer/doc-retrieval-engine/internal/cache"
	"github.com/fyerfyer/doc-retrieval-engine/internal/index"
	"github.com/fyerfyer/doc-retrieval-engine/internal/models"
	"github.com/fyerfyer/doc-retrieval-engine/internal/repository"
	"github.com/fyerfyer/doc-retrieval-engine/internal/search"
	"github.com/sirupsen/logrus"
)

// IndexStats 索引统计信息
type IndexStats struct {
	ChunkCount     int       `json:"chunk_count"`     // 分块总数
	DocumentCount  int       `json:"document_count"`  // 覆盖的文档数
	VocabularySize int       `json:"vocabulary_size"` // 词汇表大小
	BuiltAt        time.Time `json:"built_at"`        // 构建时间
}

// SearchService 检索服务
// 负责协调查询检索、结果缓存和索引重建
type SearchService struct {
	idx          *index.Index                  // 索引句柄
	retriever    *search.Retriever             // 检索器
	repo         repository.DocumentRepository // 文档仓储，重建索引时恢复语料
	cache        cache.Cache                   // 缓存，可为空
	cacheTTL     time.Duration                 // 缓存有效期
	snapshotPath string                        // 索引快照文件路径，为空时不持久化
	logger       *logrus.Logger                // 日志记录器
}

// SearchOption 检索服务配置选项
type SearchOption func(*SearchService)

// NewSearchService 创建检索服务实例
func NewSearchService(
	idx *index.Index,
	retriever *search.Retriever,
	repo repository.DocumentRepository,
	opts ...SearchOption,
) *SearchService {
	service := &SearchService{
		idx:       idx,
		retriever: retriever,
		repo:      repo,
		cacheTTL:  time.Hour,
		logger:    logrus.New(),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// WithSearchCache 设置结果缓存
func WithSearchCache(c cache.Cache) SearchOption {
	return func(s *SearchService) {
		s.cache = c
	}
}

// WithCacheTTL 设置缓存有效期
func WithCacheTTL(ttl time.Duration) SearchOption {
	return func(s *SearchService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithSnapshotPath 设置索引快照文件路径
func WithSnapshotPath(path string) SearchOption {
	return func(s *SearchService) {
		s.snapshotPath = path
	}
}

// WithSearchLogger 设置日志记录器
func WithSearchLogger(logger *logrus.Logger) SearchOption {
	return func(s *SearchService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Search 执行检索
// maxResults小于等于0时使用检索器默认值；documentID非空时只在该文档内检索。
// 缓存键携带索引快照版本，重建索引后旧缓存条目自然失效，
// 检索失败（包括索引未构建）不写入缓存
func (s *SearchService) Search(ctx context.Context, query string, documentID string, maxResults int) ([]models.ScoredResult, error) {
	// 先取快照检查索引状态，快照构建时间同时充当缓存版本号
	snap, err := s.idx.Snapshot()
	if err != nil {
		return nil, err
	}

	version := strconv.FormatInt(snap.BuiltAt().UnixNano(), 10)
	cacheKey := cache.SearchCacheKey(query, documentID, maxResults, version)

	if s.cache != nil {
		if cached, found, err := s.cache.Get(cacheKey); err == nil && found {
			var results []models.ScoredResult
			if err := json.Unmarshal([]byte(cached), &results); err == nil {
				s.logger.WithField("query", query).Debug("Search cache hit")
				return results, nil
			} else {
				// 缓存内容损坏时忽略缓存，走正常检索
				s.logger.WithError(err).Warn("Failed to unmarshal cached search results")
			}
		}
	}

	// 在取版本号的同一个快照上检索，避免与并发重建交错后
	// 把新快照的结果写到旧版本的缓存键下
	results, err := s.retriever.RetrieveFromSnapshot(ctx, snap, query, search.RetrieveOptions{
		MaxResults: maxResults,
		Threshold:  -1,
		DocumentID: documentID,
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(results); err == nil {
			if err := s.cache.Set(cacheKey, string(data), s.cacheTTL); err != nil {
				s.logger.WithError(err).Warn("Failed to cache search results")
			}
		}
	}

	return results, nil
}

// RebuildIndex 从仓储恢复全部分块语料并整体重建索引
// 配置了快照路径时将新索引持久化，供下次冷启动复用
func (s *SearchService) RebuildIndex(ctx context.Context) (*IndexStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := s.repo.ListAllChunks()
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks for index rebuild: %w", err)
	}

	fileNames, err := s.documentFileNames()
	if err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, len(records))
	for i, rec := range records {
		chunks[i] = models.Chunk{
			ID:          rec.ChunkID,
			DocumentID:  rec.DocumentID,
			FileName:    fileNames[rec.DocumentID],
			Position:    rec.Position,
			Text:        rec.Text,
			OverlapLen:  rec.OverlapLen,
			StartPage:   rec.StartPage,
			EndPage:     rec.EndPage,
			StartOffset: rec.StartOffset,
			CharCount:   rec.CharCount,
		}
	}

	snap := s.idx.Rebuild(chunks)

	s.logger.WithFields(logrus.Fields{
		"chunks":     snap.ChunkCount(),
		"documents":  snap.DocumentCount(),
		"vocabulary": snap.VocabularySize(),
	}).Info("Index rebuilt")

	if s.snapshotPath != "" {
		if err := snap.Save(s.snapshotPath); err != nil {
			// 快照只是冷启动优化，保存失败不影响已重建的索引
			s.logger.WithError(err).Warn("Failed to save index snapshot")
		}
	}

	return &IndexStats{
		ChunkCount:     snap.ChunkCount(),
		DocumentCount:  snap.DocumentCount(),
		VocabularySize: snap.VocabularySize(),
		BuiltAt:        snap.BuiltAt(),
	}, nil
}

// RestoreIndex 冷启动时恢复索引
// 优先从快照文件载入，快照缺失或损坏时回退为从仓储重建
func (s *SearchService) RestoreIndex(ctx context.Context) (*IndexStats, error) {
	if s.snapshotPath != "" {
		snap, err := index.LoadSnapshot(s.snapshotPath)
		if err == nil {
			s.idx.Restore(snap)
			s.logger.WithFields(logrus.Fields{
				"chunks":   snap.ChunkCount(),
				"built_at": snap.BuiltAt(),
			}).Info("Index restored from snapshot")

			return &IndexStats{
				ChunkCount:     snap.ChunkCount(),
				DocumentCount:  snap.DocumentCount(),
				VocabularySize: snap.VocabularySize(),
				BuiltAt:        snap.BuiltAt(),
			}, nil
		}
		s.logger.WithError(err).Warn("Failed to load index snapshot, rebuilding from repository")
	}

	return s.RebuildIndex(ctx)
}

// Stats 返回当前索引的统计信息
func (s *SearchService) Stats() (*IndexStats, error) {
	snap, err := s.idx.Snapshot()
	if err != nil {
		return nil, err
	}

	return &IndexStats{
		ChunkCount:     snap.ChunkCount(),
		DocumentCount:  snap.DocumentCount(),
		VocabularySize: snap.VocabularySize(),
		BuiltAt:        snap.BuiltAt(),
	}, nil
}

// ClearCache 清除检索结果缓存
func (s *SearchService) ClearCache() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear()
}

// documentFileNames 建立文档ID到文件名的映射
func (s *SearchService) documentFileNames() (map[string]string, error) {
	docs, _, err := s.repo.List(0, -1, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	names := make(map[string]string, len(docs))
	for _, doc := range docs {
		names[doc.ID] = doc.FileName
	}
	return names, nil
}
