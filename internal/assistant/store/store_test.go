package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/moktashif/internal/model"
	"github.com/kart-io/moktashif/pkg/errors"
)

func TestMemoryConversations_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFactory().Conversations()

	uc, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, uc.Conversations)

	uc.Conversations = append(uc.Conversations, model.Conversation{
		ID:       "c1",
		Title:    "Recon",
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NoError(t, s.Save(ctx, uc))

	uc.Conversations[0].Messages[0].Content = "mutated"
	again, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, again.Conversations, 1)
	assert.Equal(t, "hi", again.Conversations[0].Messages[0].Content)

	_, err = s.Load(ctx, "")
	assert.True(t, errors.Is(err, errors.ErrUserNotFound))
}

func TestMemoryMemories(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFactory().Memories()

	for i, k := range []model.Kind{model.KindTurn, model.KindFact, model.KindTurn} {
		require.NoError(t, s.Insert(ctx, &model.MemoryRecord{
			ID: string(rune('a' + i)), UserID: "u1", Kind: k, Text: string(k),
		}))
	}
	require.NoError(t, s.Insert(ctx, &model.MemoryRecord{ID: "x", UserID: "u2", Kind: model.KindFact, Text: "fact"}))

	all, err := s.List(ctx, "u1", nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "newest first")

	facts, err := s.List(ctx, "u1", []model.Kind{model.KindFact}, 0)
	require.NoError(t, err)
	require.Len(t, facts, 1)

	limited, err := s.List(ctx, "u1", nil, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	ok, err := s.HasText(ctx, "u1", model.KindFact, "fact")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasText(ctx, "u1", model.KindTurn, "fact")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryFiles(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFactory().Files()
	now := time.Now()

	require.NoError(t, s.Create(ctx, &model.FileMetadata{FileID: "f1", UserID: "u1", ConversationID: "c1", UploadTime: now.Add(-time.Hour)}))
	require.NoError(t, s.Create(ctx, &model.FileMetadata{FileID: "f2", UserID: "u1", ConversationID: "c1", UploadTime: now}))
	require.NoError(t, s.Create(ctx, &model.FileMetadata{FileID: "f3", UserID: "u1", ConversationID: "c2", UploadTime: now}))
	assert.Error(t, s.Create(ctx, &model.FileMetadata{FileID: "f1"}))

	files, err := s.ListByConversation(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "f2", files[0].FileID)

	all, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrFileNotFound))
}

func TestMemoryChunks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFactory().Chunks()

	require.NoError(t, s.Save(ctx, "f1", []string{"a", "b"}))
	chunks, err := s.List(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, []model.DocumentChunk{{FileID: "f1", Index: 0, Text: "a"}, {FileID: "f1", Index: 1, Text: "b"}}, chunks)

	empty, err := s.List(ctx, "none")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryVectorStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore()

	require.NoError(t, s.Upsert(ctx, []VectorRecord{
		{ID: "f1-chunk0", FileID: "f1", ChunkIndex: 0, Text: "sqli", Embedding: []float32{1, 0}},
		{ID: "f1-chunk1", FileID: "f1", ChunkIndex: 1, Text: "xss", Embedding: []float32{0, 1}},
		{ID: "f2-chunk0", FileID: "f2", ChunkIndex: 0, Text: "rce", Embedding: []float32{1, 0.1}},
	}))

	hits, err := s.Search(ctx, []float32{1, 0}, 5, "f1")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "sqli", hits[0].Text)

	global, err := s.Search(ctx, []float32{1, 0}, 2, "")
	require.NoError(t, err)
	require.Len(t, global, 2)
	assert.Equal(t, []string{"sqli", "rce"}, []string{global[0].Text, global[1].Text})
}

func TestFileFilter(t *testing.T) {
	assert.Equal(t, `file_id == "u_c_1.5"`, FileFilter("u_c_1.5"))
	assert.Equal(t, `file_id == "a\"b\\c"`, FileFilter(`a"b\c`))
}
