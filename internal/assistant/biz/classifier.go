package biz

import (
	"github.com/kart-io/moktashif/internal/pkg/textutil"
	"github.com/kart-io/moktashif/internal/pkg/websearch"
)

// Branch 是一轮对话选择的上下文分支。
type Branch int

const (
	// BranchMemory 基于记忆的默认分支。
	BranchMemory Branch = iota
	// BranchDocument 基于已加载文档回答。
	BranchDocument
	// BranchWebSearch 基于联网搜索回答。
	BranchWebSearch
)

// String 返回分支名称。
func (b Branch) String() string {
	switch b {
	case BranchDocument:
		return "document"
	case BranchWebSearch:
		return "web_search"
	default:
		return "memory"
	}
}

var fileKeywords = []string{
	"file", "document", "scan", "result", "upload", "content", "analysis",
	"vulnerability", "finding", "report", "read", "interpret", "explain",
}

var generalFileQuestions = []string{
	"what do you think of this file", "summarize this file", "analyze this file", "overview of this file",
}

// IsFileRelated 判断消息是否在谈论文件。
func IsFileRelated(msg string) bool {
	return textutil.ContainsAny(msg, fileKeywords)
}

// IsGeneralFileQuestion 判断消息是否是对整份文件的概括性提问。
func IsGeneralFileQuestion(msg string) bool {
	return textutil.ContainsAny(msg, generalFileQuestions)
}

// TurnSignals 是分支判定所需的全部输入。
type TurnSignals struct {
	Message        string
	DocumentLoaded bool
	FileAttached   bool
	ForceWebSearch bool
}

// Classify 按固定顺序判定分支：已加载文档优先；其次强制搜索、需要实时信息、
// 或附带文件的文件类问题走联网搜索；其余走记忆分支。
func Classify(s TurnSignals) Branch {
	if s.DocumentLoaded {
		return BranchDocument
	}
	if s.ForceWebSearch || websearch.NeedsWebSearch(s.Message) {
		return BranchWebSearch
	}
	if s.FileAttached && IsFileRelated(s.Message) {
		return BranchWebSearch
	}
	return BranchMemory
}

// splitLines 把完整答案切分为保留换行的片段，用于逐行输出。
func splitLines(answer string) []string {
	if answer == "" {
		return nil
	}
	return textutil.SplitLinesKeepEnds(answer)
}
