package index

import (
	"math"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/fyerfyer/doc-retrieval-engine/internal/models"
)

// Options 索引构建选项
type Options struct {
	RemoveStopwords bool // 构建和查询时是否过滤停用词
}

// DefaultOptions 返回默认索引选项
func DefaultOptions() Options {
	return Options{
		RemoveStopwords: true,
	}
}

// posting 倒排表项：包含某词项的分块序号及其归一化权重
type posting struct {
	chunkIdx int
	weight   float64
}

// Snapshot 不可变的索引快照
// Build完成后不再修改，因此并发查询无需加锁；
// 语料变化时整体重建并替换快照，而不是原地更新
type Snapshot struct {
	chunks    []models.Chunk
	vectors   []map[string]float64 // 每个分块的L2归一化TF-IDF向量（稀疏）
	idf       map[string]float64   // 词汇表：词项到逆文档频率
	postings  map[string][]posting // 倒排索引，用于裁剪候选集
	tokenizer *Tokenizer
	builtAt   time.Time
}

// 分块数达到该值时并行执行分词
const parallelBuildThreshold = 100

// Build 从分块语料构建索引快照
// 词频使用长度归一化值（词项出现次数/分块总词数），
// idf = log(N/df)，df下限为1；向量做L2归一化，余弦相似度即点积
func Build(chunks []models.Chunk, opts Options) *Snapshot {
	tokenizer := NewTokenizer(opts.RemoveStopwords)

	snap := &Snapshot{
		chunks:    chunks,
		vectors:   make([]map[string]float64, len(chunks)),
		idf:       make(map[string]float64),
		postings:  make(map[string][]posting),
		tokenizer: tokenizer,
		builtAt:   time.Now(),
	}

	if len(chunks) == 0 {
		return snap
	}

	// 分词相互独立，按分块并行；df合并必须等待全部分词完成
	tokenized := tokenizeAll(chunks, tokenizer)

	// 统计文档频率
	df := make(map[string]int)
	for _, tokens := range tokenized {
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	// 计算逆文档频率
	n := float64(len(chunks))
	for term, count := range df {
		if count < 1 {
			count = 1
		}
		snap.idf[term] = math.Log(n / float64(count))
	}

	// 为每个分块构建归一化向量，并按分块顺序填充倒排表
	for i, tokens := range tokenized {
		snap.vectors[i] = snap.vectorize(tokens)
		for term, weight := range snap.vectors[i] {
			snap.postings[term] = append(snap.postings[term], posting{chunkIdx: i, weight: weight})
		}
	}

	return snap
}

// tokenizeAll 对所有分块执行分词
// 小语料串行处理；大语料按可用CPU核心并行
func tokenizeAll(chunks []models.Chunk, tokenizer *Tokenizer) [][]string {
	result := make([][]string, len(chunks))

	threads := runtime.NumCPU() * 4 / 5
	if threads < 1 {
		threads = 1
	}

	if len(chunks) < parallelBuildThreshold || threads == 1 {
		for i, chunk := range chunks {
			result[i] = tokenizer.Tokenize(chunk.Text)
		}
		return result
	}

	chunksPerThread := (len(chunks) + threads - 1) / threads
	done := make(chan struct{}, threads)

	started := 0
	for t := 0; t < threads; t++ {
		start := t * chunksPerThread
		end := start + chunksPerThread
		if end > len(chunks) {
			end = len(chunks)
		}
		if start >= end {
			continue
		}
		started++

		go func(start, end int) {
			for i := start; i < end; i++ {
				result[i] = tokenizer.Tokenize(chunks[i].Text)
			}
			done <- struct{}{}
		}(start, end)
	}

	// 屏障：idf依赖完整语料，必须等待所有分词goroutine结束
	for i := 0; i < started; i++ {
		<-done
	}

	return result
}

// vectorize 将词项序列转为L2归一化的TF-IDF稀疏向量
// 不在词汇表中的词项权重为零，直接省略
func (s *Snapshot) vectorize(tokens []string) map[string]float64 {
	if len(tokens) == 0 {
		return map[string]float64{}
	}

	counts := make(map[string]int)
	total := 0
	for _, tok := range tokens {
		if _, ok := s.idf[tok]; !ok {
			continue
		}
		counts[tok]++
		total++
	}
	if total == 0 {
		return map[string]float64{}
	}

	vec := make(map[string]float64, len(counts))
	var norm float64
	for term, count := range counts {
		w := (float64(count) / float64(total)) * s.idf[term]
		vec[term] = w
		norm += w * w
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for term := range vec {
			vec[term] /= norm
		}
	}

	return vec
}

// Search 返回与查询最相似的前topK个分块
// 通过倒排表只对至少共享一个词项的分块计算点积；
// 与全量扫描在数学上等价（无共享词项的分块相似度恒为0）。
// 得分相同时按分块插入顺序排序，保证结果确定
func (s *Snapshot) Search(query string, topK int) []models.ScoredResult {
	if topK <= 0 {
		return []models.ScoredResult{}
	}

	queryVec := s.vectorize(s.tokenizer.Tokenize(query))
	if len(queryVec) == 0 {
		return []models.ScoredResult{}
	}

	// 候选集得分累加：两个归一化向量的点积
	scores := make(map[int]float64)
	for term, qw := range queryVec {
		for _, p := range s.postings[term] {
			scores[p.chunkIdx] += qw * p.weight
		}
	}
	if len(scores) == 0 {
		return []models.ScoredResult{}
	}

	indices := make([]int, 0, len(scores))
	for idx := range scores {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool {
		si, sj := scores[indices[i]], scores[indices[j]]
		if si != sj {
			return si > sj
		}
		return indices[i] < indices[j]
	})

	if len(indices) > topK {
		indices = indices[:topK]
	}

	results := make([]models.ScoredResult, 0, len(indices))
	for _, idx := range indices {
		score := scores[idx]
		// 浮点累加可能略微越界，归一化向量的余弦值应落在[0,1]
		if score > 1.0 {
			score = 1.0
		}
		if score < 0 {
			score = 0
		}
		results = append(results, models.ScoredResult{
			Chunk:     s.chunks[idx],
			Score:     score,
			BaseScore: score,
		})
	}

	return results
}

// ChunkCount 返回快照中的分块总数
func (s *Snapshot) ChunkCount() int {
	return len(s.chunks)
}

// VocabularySize 返回词汇表大小
func (s *Snapshot) VocabularySize() int {
	return len(s.idf)
}

// DocumentCount 返回快照覆盖的文档数量
func (s *Snapshot) DocumentCount() int {
	docs := make(map[string]struct{})
	for _, chunk := range s.chunks {
		docs[chunk.DocumentID] = struct{}{}
	}
	return len(docs)
}

// BuiltAt 返回快照的构建时间
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// Chunks 返回快照中的全部分块（按插入顺序）
func (s *Snapshot) Chunks() []models.Chunk {
	return s.chunks
}

// Index 索引句柄
// 持有当前快照的原子引用；重建产生新快照后一次性替换，
// 读取方不会观察到构建中的半成品索引
type Index struct {
	opts     Options
	snapshot atomic.Pointer[Snapshot]
}

// NewIndex 创建尚未构建的索引句柄
func NewIndex(opts Options) *Index {
	return &Index{opts: opts}
}

// Rebuild 从给定语料整体重建索引并原子替换当前快照
// 旧快照派生的查询结果随之失效，调用方不得跨快照混用结果
func (i *Index) Rebuild(chunks []models.Chunk) *Snapshot {
	snap := Build(chunks, i.opts)
	i.snapshot.Store(snap)
	return snap
}

// Restore 将载入的快照设为当前快照
func (i *Index) Restore(snap *Snapshot) {
	i.snapshot.Store(snap)
}

// Snapshot 返回当前索引快照
// 索引从未构建过时返回ErrIndexNotBuilt，以区别于"已构建但为空"
func (i *Index) Snapshot() (*Snapshot, error) {
	snap := i.snapshot.Load()
	if snap == nil {
		return nil, models.ErrIndexNotBuilt
	}
	return snap, nil
}

// Search 在当前快照上执行查询
func (i *Index) Search(query string, topK int) ([]models.ScoredResult, error) {
	snap, err := i.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Search(query, topK), nil
}
