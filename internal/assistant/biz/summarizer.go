package biz

import (
	"context"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/moktashif/internal/assistant/metrics"
	"github.com/kart-io/moktashif/internal/pkg/textutil"
	"github.com/kart-io/moktashif/pkg/errors"
	"github.com/kart-io/moktashif/pkg/llm"
)

// summaryHeadChunks 单次汇总时最多合并的块数。
const summaryHeadChunks = 3

// CompleteFunc 执行一次非流式补全。
type CompleteFunc func(ctx context.Context, prompt string) (string, error)

// CompleteWith 把 ChatProvider 适配为 CompleteFunc，提示词作为单条用户消息发送。
func CompleteWith(chat llm.ChatProvider) CompleteFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		return chat.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	}
}

// Summarizer 对任意长度的文档做层级摘要。
type Summarizer struct {
	cache    *SummaryCache
	maxDepth int
}

// NewSummarizer 创建摘要器。cache 可为 nil。
func NewSummarizer(cache *SummaryCache, maxDepth int) *Summarizer {
	return &Summarizer{cache: cache, maxDepth: maxDepth}
}

// Summarize 先按 maxChars 分块；只有一块或深度用尽时合并前三个非空块做一次摘要，
// 否则逐块摘要后拼接结果并以 depth-1 递归。没有非空块时返回 NoContentFound，不调用模型。
func (s *Summarizer) Summarize(ctx context.Context, text string, complete CompleteFunc, maxChars, maxDepth int) (string, error) {
	key := s.cache.Key(text, maxChars, maxDepth)
	if summary, ok := s.cache.Get(ctx, key); ok {
		metrics.SummaryGenerated(true)
		return summary, nil
	}

	summary, err := s.summarize(ctx, text, complete, maxChars, maxDepth)
	if err != nil {
		return "", err
	}
	if summary != NoContentFound {
		s.cache.Set(ctx, key, summary)
		metrics.SummaryGenerated(false)
	}
	return summary, nil
}

func (s *Summarizer) summarize(ctx context.Context, text string, complete CompleteFunc, maxChars, depth int) (string, error) {
	chunks := textutil.Chunk(text, maxChars)
	nonEmpty := textutil.NonEmpty(chunks)
	if len(nonEmpty) == 0 {
		return NoContentFound, nil
	}

	if len(chunks) == 1 || depth <= 0 {
		head := nonEmpty
		if len(head) > summaryHeadChunks {
			head = head[:summaryHeadChunks]
		}
		return call(ctx, complete, summaryPrompt(strings.Join(head, "\n\n")))
	}

	summaries := make([]string, 0, len(nonEmpty))
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		summary, err := call(ctx, complete, chunkSummaryPrompt(i+1, chunk))
		if err != nil {
			return "", err
		}
		summaries = append(summaries, summary)
	}

	logger.Debugw("summarized document level", "chunks", len(summaries), "depth", depth)
	return s.summarize(ctx, strings.Join(summaries, "\n\n"), complete, maxChars, depth-1)
}

// Answer 先生成层级摘要，再基于摘要回答问题。
func (s *Summarizer) Answer(ctx context.Context, text, question string, complete CompleteFunc, maxChars int) (string, error) {
	summary, err := s.Summarize(ctx, text, complete, maxChars, s.maxDepth)
	if err != nil {
		return "", err
	}
	if summary == NoContentFound {
		return summary, nil
	}
	return call(ctx, complete, summaryQuestionPrompt(summary, question))
}

func call(ctx context.Context, complete CompleteFunc, prompt string) (string, error) {
	out, err := complete(ctx, prompt)
	if err != nil {
		return "", errors.ErrUpstream.WithCause(err)
	}
	return out, nil
}
