package index

import (
	"regexp"
	"strings"
)

// Tokenizer 文本分词器
// 将文本转为小写并按词法单元切分，供索引构建和查询向量化共用。
// 语料和查询必须使用同一个分词器，否则词项无法对齐。
type Tokenizer struct {
	pattern         *regexp.Regexp
	removeStopwords bool
	stopwords       map[string]struct{}
}

// NewTokenizer 创建新的分词器
// removeStopwords 控制是否过滤常见停用词
func NewTokenizer(removeStopwords bool) *Tokenizer {
	return &Tokenizer{
		pattern:         regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`),
		removeStopwords: removeStopwords,
		stopwords:       defaultStopwords(),
	}
}

// Tokenize 将文本切分为规范化词项序列
// 小写化、去除标点，按配置过滤停用词
func (t *Tokenizer) Tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := t.pattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}

	if !t.removeStopwords {
		return raw
	}

	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if _, isStop := t.stopwords[tok]; isStop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// defaultStopwords 返回默认英文停用词表
func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for",
		"to", "of", "in", "on", "at", "by", "with", "as", "is", "are",
		"was", "were", "be", "been", "being", "it", "this", "that", "these",
		"those", "from", "up", "down", "over", "under", "again", "further",
		"than", "so", "such", "into", "about", "between", "through", "during",
		"before", "after", "above", "below", "out", "off", "own", "same",
		"too", "very", "can", "will", "just", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
