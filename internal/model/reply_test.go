package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/kart-io/moktashif/pkg/utils/json"
)

func TestReplyTo_JSONKeepsShape(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		literal bool
		index   *int
		content string
	}{
		{"literal string", `{"role":"user","content":"x","replyTo":"previous answer"}`, true, nil, "previous answer"},
		{"object with index", `{"role":"user","content":"x","replyTo":{"index":2,"content":"c","isCurrentVersion":true}}`, false, intPtr(2), "c"},
		{"string index", `{"role":"user","content":"x","replyTo":{"index":"3","content":"c"}}`, false, intPtr(3), "c"},
		{"garbage index", `{"role":"user","content":"x","replyTo":{"index":"abc","content":"c"}}`, false, nil, "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			require.NoError(t, json.Unmarshal([]byte(tt.in), &m))
			require.NotNil(t, m.ReplyTo)
			assert.Equal(t, tt.literal, m.ReplyTo.IsLiteral())
			assert.Equal(t, tt.index, m.ReplyTo.Index)
			assert.Equal(t, tt.content, m.ReplyTo.Content)

			out, err := json.Marshal(m)
			require.NoError(t, err)
			var generic map[string]any
			require.NoError(t, json.Unmarshal(out, &generic))
			if tt.literal {
				assert.Equal(t, tt.content, generic["replyTo"])
			} else {
				assert.IsType(t, map[string]any{}, generic["replyTo"])
			}
		})
	}
}

func TestReplyTo_AbsentIsNil(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":"hi"}`), &m))
	assert.Nil(t, m.ReplyTo)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "replyTo")
}

func TestReplyTo_BSONKeepsShape(t *testing.T) {
	for _, ref := range []*ReplyTo{
		NewLiteralReply("quoted"),
		{Index: intPtr(1), Content: "edited", IsCurrentVersion: true, MessageID: "m1"},
	} {
		data, err := bson.Marshal(Message{Role: RoleUser, Content: "x", ReplyTo: ref})
		require.NoError(t, err)

		var got Message
		require.NoError(t, bson.Unmarshal(data, &got))
		require.NotNil(t, got.ReplyTo)
		assert.Equal(t, ref.IsLiteral(), got.ReplyTo.IsLiteral())
		assert.Equal(t, ref.Content, got.ReplyTo.Content)
		assert.Equal(t, ref.Index, got.ReplyTo.Index)
		assert.Equal(t, ref.MessageID, got.ReplyTo.MessageID)
	}
}

func TestUserConversations_Find(t *testing.T) {
	u := UserConversations{Conversations: []Conversation{{ID: "a"}, {ID: "b"}}}
	assert.Equal(t, 1, u.Find("b"))
	assert.Equal(t, -1, u.Find("c"))
}

func intPtr(i int) *int { return &i }
