package biz

import (
	"github.com/kart-io/logger"

	"github.com/kart-io/moktashif/internal/model"
)

// ReplyContext 是解析后的回复上下文：截止到被回复消息的历史前缀，以及引用块。
type ReplyContext struct {
	Index    int
	Content  string
	Messages []model.Message
	Block    string
}

// ResolveReply 根据回复引用在历史中定位被回复的消息。
//
// 解析顺序：messageId 精确匹配；有效下标；带 isCurrentVersion 的内容同时匹配当前内容与历史版本；
// 最后按内容相等顺序扫描，取第一个。未找到时返回 nil。
func ResolveReply(messages []model.Message, ref *model.ReplyTo) *ReplyContext {
	if ref == nil {
		return nil
	}

	if ref.MessageID != "" {
		for i := range messages {
			if messages[i].ID == ref.MessageID {
				content := messages[i].Content
				if ref.IsCurrentVersion && ref.Content != "" {
					content = ref.Content
				}
				return newReplyContext(messages, i, content)
			}
		}
	}

	edited := !ref.IsLiteral() && ref.IsCurrentVersion && ref.Content != ""

	idx := -1
	if !ref.IsLiteral() && ref.Index != nil && *ref.Index >= 0 && *ref.Index < len(messages) {
		idx = *ref.Index
	}

	if edited {
		if idx >= 0 && matchesAnyVersion(messages[idx], ref.Content) {
			return newReplyContext(messages, idx, ref.Content)
		}
		for i := range messages {
			if matchesAnyVersion(messages[i], ref.Content) {
				return newReplyContext(messages, i, ref.Content)
			}
		}
		if idx >= 0 {
			return newReplyContext(messages, idx, ref.Content)
		}
	} else {
		if idx >= 0 {
			return newReplyContext(messages, idx, messages[idx].Content)
		}
		if ref.Content != "" {
			for i := range messages {
				if messages[i].Content == ref.Content {
					return newReplyContext(messages, i, messages[i].Content)
				}
			}
		}
	}

	logger.Debugw("no matching message for reply reference", "index", ref.Index, "message_id", ref.MessageID)
	return nil
}

func matchesAnyVersion(m model.Message, content string) bool {
	if m.Content == content {
		return true
	}
	for _, v := range m.Versions {
		if v.Content == content {
			return true
		}
	}
	return false
}

func newReplyContext(messages []model.Message, idx int, content string) *ReplyContext {
	prefix := make([]model.Message, idx+1)
	copy(prefix, messages[:idx+1])
	prefix[idx].Content = content
	return &ReplyContext{
		Index:    idx,
		Content:  content,
		Messages: prefix,
		Block:    replyBlock(content),
	}
}
