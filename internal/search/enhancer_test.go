package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestEnhanceBasic 测试查询增强的基础行为
func TestEnhanceBasic(t *testing.T) {
	enhancer := NewEnhancer(nil)

	t.Run("whitespace normalization", func(t *testing.T) {
		result := enhancer.Enhance("  what   is\tthe  deadline  ")
		assert.Equal(t, "what is the deadline", result, "多余空白应被折叠")
	})

	t.Run("no trigger words", func(t *testing.T) {
		query := "quarterly filing deadline"
		assert.Equal(t, query, enhancer.Enhance(query), "不含触发词的查询应原样返回")
	})

	t.Run("empty query", func(t *testing.T) {
		assert.Equal(t, "", enhancer.Enhance(""))
		assert.Equal(t, "", enhancer.Enhance("   \t  "))
	})
}

// TestEnhanceSynonyms 测试同义词扩展
func TestEnhanceSynonyms(t *testing.T) {
	enhancer := NewEnhancer(nil)

	t.Run("original terms preserved", func(t *testing.T) {
		result := enhancer.Enhance("company address")
		assert.True(t, strings.HasPrefix(result, "company address"),
			"扩展应追加在原查询之后，原始词项全部保留")
	})

	t.Run("synonyms appended for trigger", func(t *testing.T) {
		result := enhancer.Enhance("company address")
		for _, syn := range []string{"registered", "office", "location"} {
			assert.Contains(t, result, syn, "触发词的同义词应被追加")
		}
	})

	t.Run("present terms not duplicated", func(t *testing.T) {
		result := enhancer.Enhance("registered address")
		assert.Equal(t, 1, strings.Count(result, "registered"),
			"已出现在查询中的同义词不应重复追加")
	})

	t.Run("multiple triggers all expand", func(t *testing.T) {
		result := enhancer.Enhance("director address")
		assert.Contains(t, result, "board")
		assert.Contains(t, result, "registered")
	})

	t.Run("case insensitive triggers", func(t *testing.T) {
		result := enhancer.Enhance("KYC Requirements")
		assert.Contains(t, result, "verification", "触发词匹配应不区分大小写")
		assert.True(t, strings.HasPrefix(result, "KYC Requirements"),
			"原查询的大小写应保留")
	})
}

// TestEnhanceDeterminism 测试增强结果的确定性
func TestEnhanceDeterminism(t *testing.T) {
	enhancer := NewEnhancer(nil)

	query := "kyc document for director address"
	first := enhancer.Enhance(query)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, enhancer.Enhance(query), "相同查询的增强结果应完全一致")
	}

	// 不同实例也应产生相同结果
	other := NewEnhancer(nil)
	assert.Equal(t, first, other.Enhance(query))
}

// TestEnhanceCustomSynonyms 测试自定义同义词表
func TestEnhanceCustomSynonyms(t *testing.T) {
	enhancer := NewEnhancer(map[string][]string{
		"invoice": {"bill", "receipt"},
	})

	result := enhancer.Enhance("invoice number")
	assert.Contains(t, result, "bill")
	assert.Contains(t, result, "receipt")

	// 默认表的触发词不应生效
	result = enhancer.Enhance("company address")
	assert.Equal(t, "company address", result, "自定义表应完全替换默认表")
}
