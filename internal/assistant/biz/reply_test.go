package biz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/moktashif/internal/model"
)

func replyHistory() []model.Message {
	return []model.Message{
		{ID: "m0", Role: model.RoleUser, Content: "what is xss"},
		{ID: "m1", Role: model.RoleAssistant, Content: "XSS is script injection.", Versions: []model.MessageVersion{
			{Content: "old xss answer", Timestamp: time.Now()},
		}},
		{ID: "m2", Role: model.RoleUser, Content: "and csrf?"},
		{ID: "m3", Role: model.RoleAssistant, Content: "same text"},
		{ID: "m4", Role: model.RoleUser, Content: "ok"},
		{ID: "m5", Role: model.RoleAssistant, Content: "same text"},
	}
}

func intPtr(i int) *int { return &i }

func TestResolveReply_Absent(t *testing.T) {
	assert.Nil(t, ResolveReply(replyHistory(), nil))
}

func TestResolveReply_ByIndex(t *testing.T) {
	rc := ResolveReply(replyHistory(), &model.ReplyTo{Index: intPtr(1)})
	require.NotNil(t, rc)
	assert.Equal(t, 1, rc.Index)
	assert.Len(t, rc.Messages, 2)
	assert.Equal(t, "XSS is script injection.", rc.Content)
	assert.Equal(t, "\nThe user is replying to this previous message:\n---\nXSS is script injection.\n---\n", rc.Block)
}

func TestResolveReply_LiteralFirstMatchWins(t *testing.T) {
	rc := ResolveReply(replyHistory(), model.NewLiteralReply("same text"))
	require.NotNil(t, rc)
	assert.Equal(t, 3, rc.Index)
}

func TestResolveReply_OutOfRangeIndexFallsBackToContent(t *testing.T) {
	rc := ResolveReply(replyHistory(), &model.ReplyTo{Index: intPtr(42), Content: "and csrf?"})
	require.NotNil(t, rc)
	assert.Equal(t, 2, rc.Index)
}

func TestResolveReply_CurrentVersionMatchesPriorVersion(t *testing.T) {
	h := replyHistory()
	rc := ResolveReply(h, &model.ReplyTo{Content: "old xss answer", IsCurrentVersion: true})
	require.NotNil(t, rc)
	assert.Equal(t, 1, rc.Index)
	assert.Equal(t, "old xss answer", rc.Messages[1].Content)
	assert.Equal(t, "XSS is script injection.", h[1].Content, "history must not be mutated")
}

func TestResolveReply_CurrentVersionOverridesIndex(t *testing.T) {
	rc := ResolveReply(replyHistory(), &model.ReplyTo{Index: intPtr(0), Content: "old xss answer", IsCurrentVersion: true})
	require.NotNil(t, rc)
	assert.Equal(t, 1, rc.Index)
}

func TestResolveReply_CurrentVersionKeepsIndexWhenNothingMatches(t *testing.T) {
	rc := ResolveReply(replyHistory(), &model.ReplyTo{Index: intPtr(2), Content: "and csrf tokens?", IsCurrentVersion: true})
	require.NotNil(t, rc)
	assert.Equal(t, 2, rc.Index)
	assert.Equal(t, "and csrf tokens?", rc.Content)
}

func TestResolveReply_MessageIDWins(t *testing.T) {
	rc := ResolveReply(replyHistory(), &model.ReplyTo{Index: intPtr(0), Content: "same text", MessageID: "m5"})
	require.NotNil(t, rc)
	assert.Equal(t, 5, rc.Index)
	assert.Len(t, rc.Messages, 6)
}

func TestResolveReply_NoMatch(t *testing.T) {
	assert.Nil(t, ResolveReply(replyHistory(), model.NewLiteralReply("never said")))
	assert.Nil(t, ResolveReply(nil, &model.ReplyTo{Index: intPtr(0)}))
}
