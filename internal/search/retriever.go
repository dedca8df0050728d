package search

import (
	"context"
	"sort"
	"strings"

	"github.com/fyerfyer/doc-retrieval-engine/internal/index"
	"github.com/fyerfyer/doc-retrieval-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// 重排权重
// 综合得分 = 基础相似度 + 短语命中加成 + 词项覆盖加成 + 篇幅因子。
// 各加成均非负且与基础相似度无关，因此信号相同时
// 基础相似度更高的分块综合得分不会更低
const (
	phraseBonusWeight  = 0.2  // 完整查询短语出现在分块中的加成
	termOverlapWeight  = 0.1  // 查询词项在分块中的覆盖率加成上限
	lengthFactorWeight = 0.05 // 篇幅因子上限，偏好内容充实的分块
	lengthFactorScale  = 1000 // 篇幅因子在该字符数处达到上限
)

// Retriever 检索器
// 串联查询增强、索引查找、重排和阈值过滤，输出有界的排序结果
type Retriever struct {
	index      *index.Index
	enhancer   *Enhancer
	maxResults int
	threshold  float64
	overfetch  int
	logger     *logrus.Logger
}

// RetrieverOption 检索器配置选项
type RetrieverOption func(*Retriever)

// NewRetriever 创建检索器实例
// 默认最多返回8条结果，相关度阈值0.3，超取倍数2
func NewRetriever(idx *index.Index, enhancer *Enhancer, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		index:      idx,
		enhancer:   enhancer,
		maxResults: 8,
		threshold:  0.3,
		overfetch:  2,
		logger:     logrus.New(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// WithMaxResults 设置最大返回结果数
func WithMaxResults(n int) RetrieverOption {
	return func(r *Retriever) {
		if n > 0 {
			r.maxResults = n
		}
	}
}

// WithThreshold 设置相关度阈值
func WithThreshold(threshold float64) RetrieverOption {
	return func(r *Retriever) {
		if threshold >= 0 {
			r.threshold = threshold
		}
	}
}

// WithOverfetchFactor 设置超取倍数
func WithOverfetchFactor(factor int) RetrieverOption {
	return func(r *Retriever) {
		if factor >= 1 {
			r.overfetch = factor
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) RetrieverOption {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// RetrieveOptions 单次检索的覆盖参数
// MaxResults小于等于0时使用检索器默认值；
// Threshold小于0时使用检索器默认值（0是合法阈值，表示不过滤）；
// DocumentID非空时只返回该文档的分块
type RetrieveOptions struct {
	MaxResults int
	Threshold  float64
	DocumentID string
}

// Retrieve 使用默认参数执行检索
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.ScoredResult, error) {
	return r.RetrieveWithOptions(ctx, query, RetrieveOptions{MaxResults: r.maxResults, Threshold: r.threshold})
}

// RetrieveWithOptions 执行检索
// 流程：增强查询 → 索引超取候选 → 重排 → 阈值过滤 → 截断。
// 空白查询和空索引都返回空结果；索引从未构建时返回ErrIndexNotBuilt。
// 过滤后没有结果时返回空序列，不降低阈值也不构造结果，
// 如何应对"没有相关内容"由上层的答案合成方决定
func (r *Retriever) RetrieveWithOptions(ctx context.Context, query string, opts RetrieveOptions) ([]models.ScoredResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.ScoredResult{}, nil
	}

	snap, err := r.index.Snapshot()
	if err != nil {
		return nil, err
	}

	return r.RetrieveFromSnapshot(ctx, snap, query, opts)
}

// RetrieveFromSnapshot 在调用方持有的快照上执行检索
// 同一次请求中读取快照版本并检索时，必须在同一个快照上进行，
// 否则并发重建会让结果与版本不一致
func (r *Retriever) RetrieveFromSnapshot(ctx context.Context, snap *index.Snapshot, query string, opts RetrieveOptions) ([]models.ScoredResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = r.maxResults
	}
	threshold := opts.Threshold
	if threshold < 0 {
		threshold = r.threshold
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []models.ScoredResult{}, nil
	}

	enhanced := r.enhancer.Enhance(query)

	// 超取候选，给重排留出调整空间
	candidates := snap.Search(enhanced, maxResults*r.overfetch)

	if opts.DocumentID != "" {
		filtered := candidates[:0]
		for _, c := range candidates {
			if c.Chunk.DocumentID == opts.DocumentID {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	if len(candidates) == 0 {
		return []models.ScoredResult{}, nil
	}

	// 重排使用原始查询，增强词不参与精确匹配加成
	reranked := r.rerank(query, candidates)

	results := make([]models.ScoredResult, 0, maxResults)
	for _, res := range reranked {
		if res.Score < threshold {
			continue
		}
		results = append(results, res)
		if len(results) == maxResults {
			break
		}
	}

	r.logger.WithFields(logrus.Fields{
		"query":      query,
		"candidates": len(candidates),
		"results":    len(results),
	}).Debug("Retrieval completed")

	return results, nil
}

// rerank 计算综合得分并重新排序
// 候选已按基础相似度降序排列，稳定排序保证
// 综合得分相同时保持基础相似度的先后次序
func (r *Retriever) rerank(query string, candidates []models.ScoredResult) []models.ScoredResult {
	queryLower := strings.ToLower(query)
	queryTerms := strings.Fields(queryLower)

	reranked := make([]models.ScoredResult, len(candidates))
	for i, cand := range candidates {
		textLower := strings.ToLower(cand.Chunk.Text)

		// 完整短语命中加成
		phraseBonus := 0.0
		if strings.Contains(textLower, queryLower) {
			phraseBonus = phraseBonusWeight
		}

		// 查询词项覆盖率加成，奖励字面命中
		matched := 0
		for _, term := range queryTerms {
			if strings.Contains(textLower, term) {
				matched++
			}
		}
		termBonus := float64(matched) / float64(len(queryTerms)) * termOverlapWeight

		// 篇幅因子，偏好内容充实的分块
		lengthFactor := float64(cand.Chunk.CharCount) / lengthFactorScale
		if lengthFactor > 1 {
			lengthFactor = 1
		}
		lengthFactor *= lengthFactorWeight

		reranked[i] = models.ScoredResult{
			Chunk:     cand.Chunk,
			BaseScore: cand.BaseScore,
			Score:     cand.BaseScore + phraseBonus + termBonus + lengthFactor,
		}
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})

	return reranked
}
