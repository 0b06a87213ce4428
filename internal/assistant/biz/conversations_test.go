package biz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/moktashif/internal/assistant/store"
	"github.com/kart-io/moktashif/internal/model"
	"github.com/kart-io/moktashif/pkg/errors"
)

func newConversationService(t *testing.T) (*ConversationService, store.ConversationStore) {
	t.Helper()
	s := store.NewMemoryFactory().Conversations()
	return NewConversationService(s), s
}

func TestConversationService_CreateListGetDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newConversationService(t)

	conv, err := svc.Create(ctx, "u1", "  ")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConversationTitle, conv.Title)
	assert.Len(t, conv.ID, 24)
	assert.NotNil(t, conv.Messages)

	second, err := svc.Create(ctx, "u1", "Recon")
	require.NoError(t, err)

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Recon", list[1].Title)
	assert.Zero(t, list[1].MessageCount)

	got, err := svc.Get(ctx, "u1", second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Recon", got.Title)

	_, err = svc.Get(ctx, "u2", second.ID)
	assert.True(t, errors.Is(err, errors.ErrConversationNotFound))

	require.NoError(t, svc.Delete(ctx, "u1", conv.ID))
	err = svc.Delete(ctx, "u1", conv.ID)
	assert.True(t, errors.Is(err, errors.ErrConversationNotFound))

	list, err = svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestConversationService_MissingUser(t *testing.T) {
	svc, _ := newConversationService(t)
	_, err := svc.List(context.Background(), "")
	assert.True(t, errors.Is(err, errors.ErrUserNotFound))
}

func TestConversationService_Rename(t *testing.T) {
	ctx := context.Background()
	svc, _ := newConversationService(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	a, _ := svc.Create(ctx, "u1", "Alpha")
	b, _ := svc.Create(ctx, "u1", "Beta")
	svc.now = func() time.Time { return now }

	assert.True(t, errors.Is(svc.Rename(ctx, "u1", b.ID, ""), errors.ErrTitleRequired))
	assert.True(t, errors.Is(svc.Rename(ctx, "u1", b.ID, "Alpha"), errors.ErrDuplicateTitle))
	assert.True(t, errors.Is(svc.Rename(ctx, "u1", "missing", "Gamma"), errors.ErrConversationNotFound))

	// 标题比较区分大小写，且允许保留自身标题。
	require.NoError(t, svc.Rename(ctx, "u1", b.ID, "alpha"))
	require.NoError(t, svc.Rename(ctx, "u1", a.ID, "Alpha"))

	got, err := svc.Get(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Title)
	assert.Equal(t, now, got.UpdatedAt)
}

func TestConversationService_Search(t *testing.T) {
	ctx := context.Background()
	svc, s := newConversationService(t)

	long := strings.Repeat("x", 60) + " SQL injection payload " + strings.Repeat("y", 60)
	require.NoError(t, s.Save(ctx, &model.UserConversations{UserID: "u1", Conversations: []model.Conversation{
		{ID: "c1", Title: "Web app pentest", Messages: []model.Message{
			{Role: model.RoleUser, Content: "hello"},
			{Role: model.RoleUser, Content: long},
			{Role: model.RoleAssistant, Content: "use parameterized queries against sql injection"},
		}},
		{ID: "c2", Title: "Wifi audit", Messages: []model.Message{
			{Role: model.RoleUser, Content: "wpa2 handshake"},
		}},
	}}))

	res, err := svc.Search(ctx, "u1", "  ")
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)

	res, err = svc.Search(ctx, "u1", "PENTEST")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, model.MatchTitle, res[0].MatchType)
	assert.Nil(t, res[0].Snippet)
	assert.Empty(t, res[0].Matches)

	res, err = svc.Search(ctx, "u1", "sql injection")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "c1", res[0].ID)
	assert.Equal(t, model.MatchMessage, res[0].MatchType)
	assert.Equal(t, []int{1, 2}, res[0].MatchIndexes)
	require.NotNil(t, res[0].Snippet)
	assert.Equal(t, res[0].Matches[0], *res[0].Snippet)
	assert.True(t, strings.HasPrefix(*res[0].Snippet, "..."))
	assert.True(t, strings.HasSuffix(*res[0].Snippet, "..."))
	assert.Contains(t, *res[0].Snippet, "SQL injection")
	assert.Equal(t, "use parameterized queries against sql injection", res[0].Matches[1])

	res, err = svc.Search(ctx, "u1", "nothing here")
	require.NoError(t, err)
	assert.Empty(t, res)
}
