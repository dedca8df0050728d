package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTokenize 测试基础分词功能
func TestTokenize(t *testing.T) {
	tokenizer := NewTokenizer(false)

	t.Run("lowercase and punctuation", func(t *testing.T) {
		tokens := tokenizer.Tokenize("Hello, World! Registered OFFICE.")
		assert.Equal(t, []string{"hello", "world", "registered", "office"}, tokens,
			"应转为小写并去除标点")
	})

	t.Run("numbers are tokens", func(t *testing.T) {
		tokens := tokenizer.Tokenize("chapter 12 section 3")
		assert.Equal(t, []string{"chapter", "12", "section", "3"}, tokens)
	})

	t.Run("apostrophe kept inside word", func(t *testing.T) {
		tokens := tokenizer.Tokenize("the company's records")
		assert.Contains(t, tokens, "company's", "撇号应保留在词内")
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, tokenizer.Tokenize(""), "空输入应返回空词项列表")
		assert.Empty(t, tokenizer.Tokenize("  ,.!?  "), "只有标点的输入应返回空词项列表")
	})
}

// TestTokenizeStopwords 测试停用词过滤
func TestTokenizeStopwords(t *testing.T) {
	t.Run("stopwords removed when enabled", func(t *testing.T) {
		tokenizer := NewTokenizer(true)
		tokens := tokenizer.Tokenize("the quick brown fox is in the barn")
		assert.Equal(t, []string{"quick", "brown", "fox", "barn"}, tokens,
			"启用过滤时应移除停用词")
	})

	t.Run("stopwords kept when disabled", func(t *testing.T) {
		tokenizer := NewTokenizer(false)
		tokens := tokenizer.Tokenize("the quick brown fox")
		assert.Equal(t, []string{"the", "quick", "brown", "fox"}, tokens,
			"禁用过滤时应保留停用词")
	})

	t.Run("all stopwords input", func(t *testing.T) {
		tokenizer := NewTokenizer(true)
		assert.Empty(t, tokenizer.Tokenize("the and or but"),
			"全部为停用词的输入应返回空词项列表")
	})
}
