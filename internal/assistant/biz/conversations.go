package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/moktashif/internal/assistant/store"
	"github.com/kart-io/moktashif/internal/model"
	"github.com/kart-io/moktashif/internal/pkg/textutil"
	"github.com/kart-io/moktashif/pkg/errors"
	"github.com/kart-io/moktashif/pkg/id"
)

// 搜索片段参数：内容超过 snippetMaxLen 时截取匹配前后各 snippetContext 个字符。
const (
	snippetMaxLen  = 80
	snippetContext = 30
)

// ConversationService 管理会话的增删改查与搜索。
type ConversationService struct {
	store store.ConversationStore
	now   func() time.Time
}

// NewConversationService 创建会话服务。
func NewConversationService(s store.ConversationStore) *ConversationService {
	return &ConversationService{store: s, now: time.Now}
}

// loadConversation 读取用户的会话列表并定位指定会话。
func loadConversation(ctx context.Context, s store.ConversationStore, userID, conversationID string) (*model.UserConversations, int, error) {
	uc, err := s.Load(ctx, userID)
	if err != nil {
		return nil, -1, err
	}
	idx := uc.Find(conversationID)
	if idx < 0 {
		return nil, -1, errors.ErrConversationNotFound
	}
	return uc, idx, nil
}

// Create 创建会话，标题为空时使用默认标题。
func (s *ConversationService) Create(ctx context.Context, userID, title string) (*model.Conversation, error) {
	uc, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		title = model.DefaultConversationTitle
	}

	now := s.now().UTC()
	conv := model.Conversation{
		ID:        id.NewObjectID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []model.Message{},
	}
	uc.Conversations = append(uc.Conversations, conv)
	if err := s.store.Save(ctx, uc); err != nil {
		return nil, err
	}
	return &conv, nil
}

// List 返回会话摘要（不含消息）。
func (s *ConversationService) List(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	uc, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.ConversationSummary, 0, len(uc.Conversations))
	for i := range uc.Conversations {
		out = append(out, uc.Conversations[i].Summary())
	}
	return out, nil
}

// Get 返回完整会话。
func (s *ConversationService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	uc, idx, err := loadConversation(ctx, s.store, userID, conversationID)
	if err != nil {
		return nil, err
	}
	return &uc.Conversations[idx], nil
}

// Delete 删除会话。
func (s *ConversationService) Delete(ctx context.Context, userID, conversationID string) error {
	uc, idx, err := loadConversation(ctx, s.store, userID, conversationID)
	if err != nil {
		return err
	}
	uc.Conversations = append(uc.Conversations[:idx], uc.Conversations[idx+1:]...)
	return s.store.Save(ctx, uc)
}

// Rename 修改会话标题；与该用户其他会话标题完全相同（区分大小写）时返回冲突，不做修改。
func (s *ConversationService) Rename(ctx context.Context, userID, conversationID, title string) error {
	if title == "" {
		return errors.ErrTitleRequired
	}

	uc, err := s.store.Load(ctx, userID)
	if err != nil {
		return err
	}
	for i := range uc.Conversations {
		if uc.Conversations[i].Title == title && uc.Conversations[i].ID != conversationID {
			return errors.ErrDuplicateTitle
		}
	}

	idx := uc.Find(conversationID)
	if idx < 0 {
		return errors.ErrConversationNotFound
	}
	uc.Conversations[idx].Title = title
	uc.Conversations[idx].UpdatedAt = s.now().UTC()
	return s.store.Save(ctx, uc)
}

// Search 先按标题匹配；没有标题命中时才在消息内容中查找并返回片段。
func (s *ConversationService) Search(ctx context.Context, userID, query string) ([]model.SearchResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	uc, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	results := []model.SearchResult{}
	if q == "" {
		return results, nil
	}

	for _, conv := range uc.Conversations {
		if strings.Contains(strings.ToLower(conv.Title), q) {
			results = append(results, model.SearchResult{
				ID:           conv.ID,
				Title:        conv.Title,
				MatchType:    model.MatchTitle,
				CreatedAt:    conv.CreatedAt,
				UpdatedAt:    conv.UpdatedAt,
				Matches:      []string{},
				MatchIndexes: []int{},
			})
		}
	}
	if len(results) > 0 {
		return results, nil
	}

	for _, conv := range uc.Conversations {
		var matches []string
		var indexes []int
		for i, msg := range conv.Messages {
			snippet, ok := textutil.Snippet(msg.Content, q, snippetMaxLen, snippetContext)
			if !ok {
				continue
			}
			matches = append(matches, snippet)
			indexes = append(indexes, i)
		}
		if len(matches) == 0 {
			continue
		}
		first := matches[0]
		results = append(results, model.SearchResult{
			ID:           conv.ID,
			Title:        conv.Title,
			MatchType:    model.MatchMessage,
			Snippet:      &first,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			Matches:      matches,
			MatchIndexes: indexes,
		})
	}
	return results, nil
}
