package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"collapses whitespace", "  hello \t\n  world  ", "hello world"},
		{"keeps allowed punctuation", "Hi, there! Ready? Yes - go.", "Hi, there! Ready? Yes - go."},
		{"strips symbols", "price: $5 (approx) #tag", "price 5 approx tag"},
		{"decomposes accents", "café", "cafe"},
		{"compatibility forms", "ﬁle Ⅳ", "file IV"},
		{"stripping leaves no double space", "a @ b", "a b"},
		{"keeps underscore", "snake_case", "snake_case"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanText(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, CleanText(got), "clean text must be idempotent")
		})
	}
}

func TestCleanQuery(t *testing.T) {
	assert.Equal(t, "hello world", CleanQuery("  Hello,   World!!  "))
	assert.Equal(t, "what is the weather in new york", CleanQuery("What is the weather in New-York?"))
	assert.Equal(t, "", CleanQuery("?!"))
}

func TestPreprocessSingleText(t *testing.T) {
	t.Run("drops url email and bare numbers", func(t *testing.T) {
		got := PreprocessSingleText("Visit http://x.com or a@b.com, 5 percent off")
		assert.Equal(t, "visit or 5 percent off", got)
		assert.NotContains(t, got, "x.com")
		assert.NotContains(t, got, "@")
	})

	t.Run("keeps unit suffixed numbers", func(t *testing.T) {
		got := PreprocessSingleText("Order 42 shipped in 3 days for 20 Dollars at 7% off")
		assert.Equal(t, "order shipped in 3 days for 20 dollars at 7 off", got)
	})

	t.Run("plural and singular units", func(t *testing.T) {
		assert.Equal(t, "1 year and 2 months", PreprocessSingleText("1 year and 2 months"))
	})

	t.Run("www links", func(t *testing.T) {
		assert.Equal(t, "see", PreprocessSingleText("See www.example.org/page"))
	})

	t.Run("scheme-less http tokens", func(t *testing.T) {
		assert.Equal(t, "try today", PreprocessSingleText("Try httpbin.org/get today"))
	})

	t.Run("digits inside words survive", func(t *testing.T) {
		assert.Equal(t, "model gpt4 release", PreprocessSingleText("Model GPT4 release 2024"))
	})
}

func TestPreprocessForEmbedding(t *testing.T) {
	out := PreprocessForEmbedding("Hello World", "Call 555 now")
	assert.Equal(t, []string{"hello world", "call now"}, out)
	assert.Empty(t, PreprocessForEmbedding())
}

func TestFilterTexts(t *testing.T) {
	out := FilterTexts([]string{"short", "this one is long enough", "  ##  tiny ## "}, 10)
	assert.Equal(t, []string{"this one is long enough"}, out)
}
