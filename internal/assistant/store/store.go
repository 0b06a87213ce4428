package store

import (
	"context"

	"github.com/kart-io/moktashif/internal/model"
)

// Factory 聚合各类存储。
type Factory interface {
	Conversations() ConversationStore
	Memories() MemoryStore
	Files() FileStore
	Chunks() ChunkStore
	Close() error
}

// ConversationStore 以用户为粒度整体读写会话列表，后写覆盖先写。
type ConversationStore interface {
	// Load 读取用户的全部会话；用户不存在时返回 ErrUserNotFound。
	Load(ctx context.Context, userID string) (*model.UserConversations, error)
	// Save 整体覆盖用户的会话列表。
	Save(ctx context.Context, uc *model.UserConversations) error
}

// MemoryStore 是只追加的记忆记录存储。
type MemoryStore interface {
	// Insert 追加一条记录。
	Insert(ctx context.Context, rec *model.MemoryRecord) error
	// List 按时间倒序返回用户的记录，kinds 为空时返回全部类型，最多 limit 条。
	List(ctx context.Context, userID string, kinds []model.Kind, limit int) ([]model.MemoryRecord, error)
	// HasText 判断用户是否已有指定类型且文本相同的记录。
	HasText(ctx context.Context, userID string, kind model.Kind, text string) (bool, error)
}

// FileStore 保存不可变的文件元数据。
type FileStore interface {
	Create(ctx context.Context, meta *model.FileMetadata) error
	// Get 返回文件元数据；不存在时返回 ErrFileNotFound。
	Get(ctx context.Context, fileID string) (*model.FileMetadata, error)
	// ListByUser 按上传时间倒序返回用户的文件。
	ListByUser(ctx context.Context, userID string) ([]model.FileMetadata, error)
	// ListByConversation 按上传时间倒序返回会话的文件。
	ListByConversation(ctx context.Context, userID, conversationID string) ([]model.FileMetadata, error)
}

// ChunkStore 以 (file_id, index) 为键保存文档块。
type ChunkStore interface {
	// Save 保存文件的全部块，下标即块序号。
	Save(ctx context.Context, fileID string, chunks []string) error
	// List 按序号升序返回文件的全部块。
	List(ctx context.Context, fileID string) ([]model.DocumentChunk, error)
}

// VectorRecord 是写入向量索引的一个文档块。
type VectorRecord struct {
	ID         string
	FileID     string
	ChunkIndex int
	Text       string
	Embedding  []float32
}

// VectorHit 是一次向量检索的命中结果。
type VectorHit struct {
	ID         string
	FileID     string
	ChunkIndex int
	Text       string
	Score      float32
}

// VectorStore 定义向量索引接口。
type VectorStore interface {
	// Upsert 写入记录，相同 ID 覆盖。
	Upsert(ctx context.Context, records []VectorRecord) error
	// Search 按相似度降序返回最多 topK 条；fileID 非空时只在该文件内检索。
	Search(ctx context.Context, vector []float32, topK int, fileID string) ([]VectorHit, error)
	// Name 返回后端名称。
	Name() string
}
