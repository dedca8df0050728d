package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fyerfyer/doc-retrieval-engine/internal/models"
)

// snapshotData 快照的序列化格式
// 保存词汇表、idf和各分块向量，倒排表在载入时重建
type snapshotData struct {
	Chunks          []models.Chunk       `json:"chunks"`
	Vectors         []map[string]float64 `json:"vectors"`
	IDF             map[string]float64   `json:"idf"`
	RemoveStopwords bool                 `json:"remove_stopwords"`
	BuiltAt         time.Time            `json:"built_at"`
}

// Save 将快照序列化到文件，用于冷启动时复用索引
func (s *Snapshot) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data := snapshotData{
		Chunks:          s.chunks,
		Vectors:         s.vectors,
		IDF:             s.idf,
		RemoveStopwords: s.tokenizer.removeStopwords,
		BuiltAt:         s.builtAt,
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(&data); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot 从文件载入序列化的快照
func LoadSnapshot(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	var data snapshotData
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	if len(data.Vectors) != len(data.Chunks) {
		return nil, fmt.Errorf("corrupt snapshot: %d vectors for %d chunks", len(data.Vectors), len(data.Chunks))
	}

	snap := &Snapshot{
		chunks:    data.Chunks,
		vectors:   data.Vectors,
		idf:       data.IDF,
		postings:  make(map[string][]posting),
		tokenizer: NewTokenizer(data.RemoveStopwords),
		builtAt:   data.BuiltAt,
	}
	if snap.idf == nil {
		snap.idf = make(map[string]float64)
	}

	// 按分块顺序重建倒排表，保持并列得分的稳定排序
	for i, vec := range snap.vectors {
		for term, weight := range vec {
			snap.postings[term] = append(snap.postings[term], posting{chunkIdx: i, weight: weight})
		}
	}

	return snap, nil
}
