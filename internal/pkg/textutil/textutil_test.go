package textutil_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/moktashif/internal/pkg/textutil"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
		want     []string
	}{
		{"空文本", "", 10, []string{}},
		{"空文本且长度非法", "", 0, []string{}},
		{"短文本", "abc", 10, []string{"abc"}},
		{"恰好整除", "abcdef", 3, []string{"abc", "def"}},
		{"有余数", "abcdefg", 3, []string{"abc", "def", "g"}},
		{"多字节字符", "安全漏洞扫描", 4, []string{"安全漏洞", "扫描"}},
		{"长度非法", "abc", 0, []string{"abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textutil.Chunk(tt.text, tt.maxChars))
		})
	}
}

func TestChunk_Reassembles(t *testing.T) {
	doc := strings.Repeat("SQL injection in /login; XSS in /search. 漏洞 ", 250)
	for _, size := range []int{1, 7, 100, 2000, 1 << 20} {
		chunks := textutil.Chunk(doc, size)
		assert.Equal(t, doc, strings.Join(chunks, ""), "size %d", size)
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), size)
		}
		assert.Equal(t, chunks, textutil.Chunk(doc, size))
	}
}

func TestNonEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", " b "}, textutil.NonEmpty([]string{"", "a", "  \n", " b "}))
	assert.Empty(t, textutil.NonEmpty(nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "ab", textutil.Truncate("abc", 2))
	assert.Equal(t, "abc", textutil.Truncate("abc", 5))
	assert.Equal(t, "安全", textutil.Truncate("安全漏洞", 2))
	assert.Equal(t, "", textutil.Truncate("abc", 0))
}

func TestSnippet(t *testing.T) {
	s, ok := textutil.Snippet("Short Nmap note", "nmap", 80, 30)
	assert.True(t, ok)
	assert.Equal(t, "Short Nmap note", s)

	long := strings.Repeat("x", 50) + "NMAP" + strings.Repeat("y", 50)
	s, ok = textutil.Snippet(long, "nmap", 80, 30)
	assert.True(t, ok)
	assert.Equal(t, "..."+strings.Repeat("x", 30)+"NMAP"+strings.Repeat("y", 30)+"...", s)

	start := "NMAP" + strings.Repeat("y", 100)
	s, ok = textutil.Snippet(start, "nmap", 80, 30)
	assert.True(t, ok)
	assert.Equal(t, "NMAP"+strings.Repeat("y", 30)+"...", s)

	_, ok = textutil.Snippet(long, "burp", 80, 30)
	assert.False(t, ok)
}

func TestSnippet_MultiByte(t *testing.T) {
	// "İ" lowers to a one-byte "i", so byte offsets of the lowered text drift.
	content := strings.Repeat("İ", 50) + "NMAP" + strings.Repeat("ş", 50)
	s, ok := textutil.Snippet(content, "nmap", 80, 5)
	assert.True(t, ok)
	assert.True(t, utf8.ValidString(s))
	assert.Equal(t, "..."+strings.Repeat("İ", 5)+"NMAP"+strings.Repeat("ş", 5)+"...", s)

	s, ok = textutil.Snippet(content, "İİn", 80, 0)
	assert.True(t, ok)
	assert.Equal(t, "...İİN...", s)
}

func TestSplitLinesKeepEnds(t *testing.T) {
	assert.Nil(t, textutil.SplitLinesKeepEnds(""))
	assert.Equal(t, []string{"a\n", "b\n", "c"}, textutil.SplitLinesKeepEnds("a\nb\nc"))
	assert.Equal(t, []string{"a\n", "\n"}, textutil.SplitLinesKeepEnds("a\n\n"))
}

func TestContainsAny(t *testing.T) {
	assert.True(t, textutil.ContainsAny("Please EXPLAIN the report", []string{"explain"}))
	assert.False(t, textutil.ContainsAny("hello", []string{"file"}))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{"相同向量", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"正交向量", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0},
		{"相反向量", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1.0},
		{"空向量", []float32{}, []float32{}, 0.0},
		{"长度不匹配", []float32{1, 2}, []float32{1}, 0.0},
		{"零向量", []float32{0, 0}, []float32{1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, textutil.CosineSimilarity(tt.a, tt.b), 0.0001)
		})
	}
}

func TestNormalizeCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, textutil.NormalizeCosineSimilarity(1), 0.0001)
	assert.InDelta(t, 0.0, textutil.NormalizeCosineSimilarity(-1), 0.0001)
	assert.InDelta(t, 0.5, textutil.NormalizeCosineSimilarity(0), 0.0001)
}

func TestTokenOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, textutil.TokenOverlap("nginx version", "We run NGINX, version 1.25"), 0.0001)
	assert.InDelta(t, 0.5, textutil.TokenOverlap("nginx apache", "nginx only"), 0.0001)
	assert.Zero(t, textutil.TokenOverlap("", "anything"))
	assert.Zero(t, textutil.TokenOverlap("a", "a"))
}

func TestHashString(t *testing.T) {
	assert.Equal(t, textutil.HashString("x"), textutil.HashString("x"))
	assert.NotEqual(t, textutil.HashString("x"), textutil.HashString("y"))
	assert.Len(t, textutil.HashString("x"), 64)
}
