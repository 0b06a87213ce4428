// Package textutil 提供分块、截断、相似度等文本处理工具函数。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunk 将文本切分为连续、不重叠的块，每块最多 maxChars 个 Unicode 字符。
// 按顺序拼接所有块可还原原文；空文本返回空切片；maxChars <= 0 时整段作为一块。
func Chunk(text string, maxChars int) []string {
	if text == "" {
		return []string{}
	}
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/maxChars+1)
	start, count := 0, 0
	for i := range text {
		if count == maxChars {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}

// NonEmpty 返回去除空白后非空的块，保持原有顺序。
func NonEmpty(chunks []string) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

// Truncate 截断字符串到指定的最大 Unicode 字符数。
func Truncate(s string, maxLen int) string {
	if maxLen < 0 {
		return s
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// Snippet 返回 content 中第一次出现 query（忽略大小写）附近的片段。
// 内容不超过 maxLen 时原样返回；否则取匹配前后各 context 个字符，并在被截断的一侧加 "..."。
// 未匹配时返回 false。
func Snippet(content, query string, maxLen, context int) (string, bool) {
	runes := []rune(content)
	lower := lowerRunes(runes)
	q := lowerRunes([]rune(query))
	if len(q) == 0 {
		return "", false
	}

	pos := indexRunes(lower, q)
	if pos < 0 {
		return "", false
	}
	if len(runes) <= maxLen {
		return content, true
	}

	start := max(0, pos-context)
	end := min(len(runes), pos+len(q)+context)
	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet += "..."
	}
	return snippet, true
}

// lowerRunes 逐字符转小写，下标与原文一一对应。
func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func indexRunes(s, sub []rune) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// ContainsAny 判断 s（忽略大小写）是否包含任一关键词。
func ContainsAny(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// SplitLinesKeepEnds 按行切分文本并保留行尾换行符，拼接结果与原文一致。
func SplitLinesKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，长度不一致或为零向量时返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeCosineSimilarity 将余弦相似度归一化到 [0, 1] 范围。
func NormalizeCosineSimilarity(similarity float64) float64 {
	return (similarity + 1) / 2
}

// Tokens 将文本切分为小写词集合，忽略长度小于 2 的词。
func Tokens(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 2 {
			set[f] = struct{}{}
		}
	}
	return set
}

// TokenOverlap 计算查询词在文本中出现的比例，范围 [0, 1]。
func TokenOverlap(query, text string) float64 {
	q := Tokens(query)
	if len(q) == 0 {
		return 0
	}
	t := Tokens(text)
	hits := 0
	for tok := range q {
		if _, ok := t[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(q))
}

// HashString 计算字符串的 SHA-256 哈希值。
func HashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}
