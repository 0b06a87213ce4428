package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kart-io/moktashif/internal/model"
	"github.com/kart-io/moktashif/pkg/component/mongodb"
	"github.com/kart-io/moktashif/pkg/errors"
)

// MongoDB collection names.
const (
	CollectionUsers    = "users"
	CollectionMemories = "memories"
	CollectionFiles    = "files"
	CollectionChunks   = "chunks"
)

var _ Factory = (*MongoFactory)(nil)

// MongoFactory 基于 MongoDB 的存储。
// 会话内嵌在 users 文档的 conversations 字段中，用户文档由认证服务创建。
type MongoFactory struct {
	client *mongodb.Client

	conversations *mongoConversations
	memories      *mongoMemories
	files         *mongoFiles
	chunks        *mongoChunks
}

// NewMongoFactory 创建存储并确保索引存在。
func NewMongoFactory(ctx context.Context, client *mongodb.Client) (*MongoFactory, error) {
	f := &MongoFactory{
		client:        client,
		conversations: &mongoConversations{coll: client.Collection(CollectionUsers)},
		memories:      &mongoMemories{coll: client.Collection(CollectionMemories)},
		files:         &mongoFiles{coll: client.Collection(CollectionFiles)},
		chunks:        &mongoChunks{coll: client.Collection(CollectionChunks)},
	}
	if err := f.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *MongoFactory) ensureIndexes(ctx context.Context) error {
	err := f.client.EnsureIndexes(ctx, map[string][]mongo.IndexModel{
		CollectionMemories: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "type", Value: 1}, {Key: "text", Value: 1}}},
		},
		CollectionFiles: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "conversation_id", Value: 1}, {Key: "upload_time", Value: -1}}},
		},
		CollectionChunks: {
			{
				Keys:    bson.D{{Key: "file_id", Value: 1}, {Key: "chunk_index", Value: 1}},
				Options: mongoopts.Index().SetUnique(true),
			},
		},
	})
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (f *MongoFactory) Conversations() ConversationStore { return f.conversations }
func (f *MongoFactory) Memories() MemoryStore            { return f.memories }
func (f *MongoFactory) Files() FileStore                 { return f.files }
func (f *MongoFactory) Chunks() ChunkStore               { return f.chunks }

// Close 断开 MongoDB 连接。
func (f *MongoFactory) Close() error { return f.client.Close() }

type mongoConversations struct {
	coll *mongo.Collection
}

// userKey 兼容以 ObjectID 为主键的用户文档。
func userKey(userID string) any {
	if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
		return oid
	}
	return userID
}

func (s *mongoConversations) Load(ctx context.Context, userID string) (*model.UserConversations, error) {
	var doc struct {
		Conversations []model.Conversation `bson:"conversations"`
	}
	opts := mongoopts.FindOne().SetProjection(bson.M{"conversations": 1})
	err := s.coll.FindOne(ctx, bson.M{"_id": userKey(userID)}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	if doc.Conversations == nil {
		doc.Conversations = []model.Conversation{}
	}
	return &model.UserConversations{UserID: userID, Conversations: doc.Conversations}, nil
}

func (s *mongoConversations) Save(ctx context.Context, uc *model.UserConversations) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": userKey(uc.UserID)},
		bson.M{"$set": bson.M{"conversations": uc.Conversations}},
	)
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

type mongoMemories struct {
	coll *mongo.Collection
}

func (s *mongoMemories) Insert(ctx context.Context, rec *model.MemoryRecord) error {
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *mongoMemories) List(ctx context.Context, userID string, kinds []model.Kind, limit int) ([]model.MemoryRecord, error) {
	filter := bson.M{"user_id": userID}
	if len(kinds) > 0 {
		filter["type"] = bson.M{"$in": kinds}
	}
	opts := mongoopts.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	var out []model.MemoryRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return out, nil
}

func (s *mongoMemories) HasText(ctx context.Context, userID string, kind model.Kind, text string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx,
		bson.M{"user_id": userID, "type": kind, "text": text},
		mongoopts.Count().SetLimit(1),
	)
	if err != nil {
		return false, errors.ErrDatabase.WithCause(err)
	}
	return n > 0, nil
}

type mongoFiles struct {
	coll *mongo.Collection
}

func (s *mongoFiles) Create(ctx context.Context, meta *model.FileMetadata) error {
	if _, err := s.coll.InsertOne(ctx, meta); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.ErrConflict.WithCause(err)
		}
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *mongoFiles) Get(ctx context.Context, fileID string) (*model.FileMetadata, error) {
	var meta model.FileMetadata
	err := s.coll.FindOne(ctx, bson.M{"_id": fileID}).Decode(&meta)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.ErrFileNotFound
	}
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &meta, nil
}

func (s *mongoFiles) ListByUser(ctx context.Context, userID string) ([]model.FileMetadata, error) {
	return s.find(ctx, bson.M{"user_id": userID})
}

func (s *mongoFiles) ListByConversation(ctx context.Context, userID, conversationID string) ([]model.FileMetadata, error) {
	return s.find(ctx, bson.M{"user_id": userID, "conversation_id": conversationID})
}

func (s *mongoFiles) find(ctx context.Context, filter bson.M) ([]model.FileMetadata, error) {
	opts := mongoopts.Find().SetSort(bson.D{{Key: "upload_time", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	out := make([]model.FileMetadata, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return out, nil
}

type mongoChunks struct {
	coll *mongo.Collection
}

func (s *mongoChunks) Save(ctx context.Context, fileID string, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]any, len(chunks))
	for i, text := range chunks {
		docs[i] = model.DocumentChunk{FileID: fileID, Index: i, Text: text}
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

func (s *mongoChunks) List(ctx context.Context, fileID string) ([]model.DocumentChunk, error) {
	opts := mongoopts.Find().SetSort(bson.D{{Key: "chunk_index", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{"file_id": fileID}, opts)
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	out := make([]model.DocumentChunk, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return out, nil
}

// pingTimeout bounds the health probe used by the server.
const pingTimeout = 3 * time.Second

// Ping 检查 MongoDB 连接。
func (f *MongoFactory) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return f.client.Ping(ctx)
}
