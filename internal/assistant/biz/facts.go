package biz

import (
	"context"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/moktashif/internal/assistant/metrics"
	"github.com/kart-io/moktashif/internal/model"
	"github.com/kart-io/moktashif/pkg/llm"
)

// FactExtractor 判断文本是否包含值得长期记住的个人信息，并写入记忆。
type FactExtractor struct {
	chat       llm.ChatProvider
	memory     *MemoryStore
	importance float64
}

// NewFactExtractor 创建事实提取器。importance 是事实记忆的固定重要度。
func NewFactExtractor(chat llm.ChatProvider, memory *MemoryStore, importance float64) *FactExtractor {
	return &FactExtractor{chat: chat, memory: memory, importance: importance}
}

// IsPersonalFact 调用模型分类；回复以 "YES:" 开头时返回 (true, 提取的事实)。
// 任何失败都返回 (false, "")。
func (f *FactExtractor) IsPersonalFact(ctx context.Context, text string) (bool, string) {
	if strings.TrimSpace(text) == "" {
		return false, ""
	}

	reply, err := f.chat.Generate(ctx, text, factClassifierPrompt)
	if err != nil {
		logger.Warnw("fact classification failed", "error", err.Error())
		return false, ""
	}

	reply = strings.TrimSpace(reply)
	if len(reply) < 4 || !strings.EqualFold(reply[:4], "YES:") {
		return false, ""
	}
	fact := strings.TrimSpace(reply[4:])
	if fact == "" {
		return false, ""
	}
	return true, fact
}

// Capture 分类并在命中时写入事实记忆，已存在的相同事实不重复写入。
func (f *FactExtractor) Capture(ctx context.Context, userID, conversationID, title, text string) (bool, string) {
	ok, fact := f.IsPersonalFact(ctx, text)
	if !ok {
		return false, ""
	}
	f.store(ctx, userID, conversationID, title, fact)
	return true, fact
}

// ExtractAndStoreFacts 在一轮对话结束后分别检查用户与助手的消息，每侧最多写入一条新事实。
func (f *FactExtractor) ExtractAndStoreFacts(ctx context.Context, userID, userMessage, assistantMessage, conversationID, title string) {
	for _, text := range []string{userMessage, assistantMessage} {
		if ok, fact := f.IsPersonalFact(ctx, text); ok {
			f.store(ctx, userID, conversationID, title, fact)
		}
	}
}

func (f *FactExtractor) store(ctx context.Context, userID, conversationID, title, fact string) {
	if f.memory.HasFact(ctx, userID, fact) {
		logger.Debugw("fact already known", "user_id", userID)
		return
	}
	f.memory.Remember(ctx, userID, fact, conversationID, title, model.KindFact, true, f.importance, model.TopicCybersecurity)
	metrics.FactCaptured()
}
