package search

import (
	"sort"
	"strings"
)

// Enhancer 查询增强器
// 在检索前对原始查询做规范化和同义词扩展。
// 扩展只做追加，原始词项全部保留，因此召回只增不减。
// 增强结果只取决于查询文本和同义词表，无副作用
type Enhancer struct {
	synonyms map[string][]string
	keys     []string // 排序后的触发词，保证扩展顺序确定
}

// NewEnhancer 创建查询增强器
// synonyms为空时使用默认同义词表
func NewEnhancer(synonyms map[string][]string) *Enhancer {
	if len(synonyms) == 0 {
		synonyms = DefaultSynonyms()
	}

	keys := make([]string, 0, len(synonyms))
	for key := range synonyms {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return &Enhancer{
		synonyms: synonyms,
		keys:     keys,
	}
}

// DefaultSynonyms 返回默认同义词表
// 面向银行/企业文档场景的常见同义词
func DefaultSynonyms() map[string][]string {
	return map[string][]string{
		"address":  {"registered", "office", "location"},
		"director": {"board", "member", "officer"},
		"document": {"form", "certificate"},
		"kyc":      {"know", "your", "customer", "verification"},
	}
}

// Enhance 对查询做规范化和同义词扩展
// 折叠多余空白后，为查询中出现的每个触发词追加其同义词；
// 已存在于查询中的词不重复追加
func (e *Enhancer) Enhance(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	normalized := strings.Join(fields, " ")
	lower := strings.ToLower(normalized)

	present := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		present[strings.ToLower(f)] = struct{}{}
	}

	var expansions []string
	for _, key := range e.keys {
		if !strings.Contains(lower, key) {
			continue
		}
		for _, syn := range e.synonyms[key] {
			if _, ok := present[syn]; ok {
				continue
			}
			present[syn] = struct{}{}
			expansions = append(expansions, syn)
		}
	}

	if len(expansions) == 0 {
		return normalized
	}
	return normalized + " " + strings.Join(expansions, " ")
}
