package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kart-io/moktashif/internal/model"
	"github.com/kart-io/moktashif/internal/pkg/textutil"
	"github.com/kart-io/moktashif/pkg/errors"
)

var _ Factory = (*MemoryFactory)(nil)

// MemoryFactory 是进程内存储，用于本地开发与测试。
// 首次读取时自动创建用户。
type MemoryFactory struct {
	conversations *memConversations
	memories      *memMemories
	files         *memFiles
	chunks        *memChunks
}

// NewMemoryFactory 创建内存存储。
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{
		conversations: &memConversations{users: make(map[string][]model.Conversation)},
		memories:      &memMemories{},
		files:         &memFiles{files: make(map[string]model.FileMetadata)},
		chunks:        &memChunks{chunks: make(map[string][]string)},
	}
}

func (f *MemoryFactory) Conversations() ConversationStore { return f.conversations }
func (f *MemoryFactory) Memories() MemoryStore            { return f.memories }
func (f *MemoryFactory) Files() FileStore                 { return f.files }
func (f *MemoryFactory) Chunks() ChunkStore               { return f.chunks }
func (f *MemoryFactory) Close() error                     { return nil }

type memConversations struct {
	mu    sync.RWMutex
	users map[string][]model.Conversation
}

func (s *memConversations) Load(_ context.Context, userID string) (*model.UserConversations, error) {
	if userID == "" {
		return nil, errors.ErrUserNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &model.UserConversations{UserID: userID, Conversations: cloneConversations(s.users[userID])}, nil
}

func (s *memConversations) Save(_ context.Context, uc *model.UserConversations) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[uc.UserID] = cloneConversations(uc.Conversations)
	return nil
}

// cloneConversations 深拷贝，避免调用方修改共享状态。
func cloneConversations(in []model.Conversation) []model.Conversation {
	out := make([]model.Conversation, len(in))
	for i, c := range in {
		out[i] = c
		out[i].Messages = make([]model.Message, len(c.Messages))
		for j, m := range c.Messages {
			out[i].Messages[j] = m
			if m.Versions != nil {
				out[i].Messages[j].Versions = append([]model.MessageVersion(nil), m.Versions...)
			}
			if m.ReplyTo != nil {
				ref := *m.ReplyTo
				out[i].Messages[j].ReplyTo = &ref
			}
		}
	}
	return out
}

type memMemories struct {
	mu      sync.RWMutex
	records []model.MemoryRecord
}

func (s *memMemories) Insert(_ context.Context, rec *model.MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

func (s *memMemories) List(_ context.Context, userID string, kinds []model.Kind, limit int) ([]model.MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.MemoryRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if r.UserID != userID || !kindIn(r.Kind, kinds) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memMemories) HasText(_ context.Context, userID string, kind model.Kind, text string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.UserID == userID && r.Kind == kind && r.Text == text {
			return true, nil
		}
	}
	return false, nil
}

func kindIn(k model.Kind, kinds []model.Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

type memFiles struct {
	mu    sync.RWMutex
	files map[string]model.FileMetadata
}

func (s *memFiles) Create(_ context.Context, meta *model.FileMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[meta.FileID]; ok {
		return errors.ErrConflict.WithMessagef("file %s already exists", meta.FileID)
	}
	s.files[meta.FileID] = *meta
	return nil
}

func (s *memFiles) Get(_ context.Context, fileID string) (*model.FileMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.files[fileID]
	if !ok {
		return nil, errors.ErrFileNotFound
	}
	return &meta, nil
}

func (s *memFiles) ListByUser(_ context.Context, userID string) ([]model.FileMetadata, error) {
	return s.filter(func(m *model.FileMetadata) bool { return m.UserID == userID }), nil
}

func (s *memFiles) ListByConversation(_ context.Context, userID, conversationID string) ([]model.FileMetadata, error) {
	return s.filter(func(m *model.FileMetadata) bool {
		return m.UserID == userID && m.ConversationID == conversationID
	}), nil
}

func (s *memFiles) filter(keep func(*model.FileMetadata) bool) []model.FileMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.FileMetadata, 0)
	for _, m := range s.files {
		if keep(&m) {
			out = append(out, m)
		}
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(files []model.FileMetadata) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].UploadTime.Equal(files[j].UploadTime) {
			return files[i].FileID > files[j].FileID
		}
		return files[i].UploadTime.After(files[j].UploadTime)
	})
}

type memChunks struct {
	mu     sync.RWMutex
	chunks map[string][]string
}

func (s *memChunks) Save(_ context.Context, fileID string, chunks []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[fileID] = append([]string(nil), chunks...)
	return nil
}

func (s *memChunks) List(_ context.Context, fileID string) ([]model.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	texts := s.chunks[fileID]
	out := make([]model.DocumentChunk, len(texts))
	for i, t := range texts {
		out[i] = model.DocumentChunk{FileID: fileID, Index: i, Text: t}
	}
	return out, nil
}

var _ VectorStore = (*MemoryVectorStore)(nil)

// MemoryVectorStore 是基于余弦相似度暴力检索的内存向量索引。
type MemoryVectorStore struct {
	mu      sync.RWMutex
	records map[string]VectorRecord
}

// NewMemoryVectorStore 创建内存向量索引。
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{records: make(map[string]VectorRecord)}
}

// Name 返回后端名称。
func (s *MemoryVectorStore) Name() string { return "memory" }

// Upsert 写入记录，相同 ID 覆盖。
func (s *MemoryVectorStore) Upsert(_ context.Context, records []VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

// Search 按余弦相似度降序返回最多 topK 条。
func (s *MemoryVectorStore) Search(_ context.Context, vector []float32, topK int, fileID string) ([]VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]VectorHit, 0, len(s.records))
	for _, r := range s.records {
		if fileID != "" && r.FileID != fileID {
			continue
		}
		hits = append(hits, VectorHit{
			ID:         r.ID,
			FileID:     r.FileID,
			ChunkIndex: r.ChunkIndex,
			Text:       r.Text,
			Score:      float32(textutil.CosineSimilarity(vector, r.Embedding)),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].ID < hits[j].ID
		}
		return hits[i].Score > hits[j].Score
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}
