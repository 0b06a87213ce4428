package biz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/moktashif/internal/assistant/metrics"
	"github.com/kart-io/moktashif/internal/assistant/store"
	"github.com/kart-io/moktashif/internal/model"
	"github.com/kart-io/moktashif/internal/pkg/blob"
	"github.com/kart-io/moktashif/internal/pkg/extract"
	"github.com/kart-io/moktashif/internal/pkg/textutil"
	"github.com/kart-io/moktashif/pkg/errors"
)

// 文件记忆中引用的正文长度。
const fileMemoryExcerpt = 500

const untitledConversation = "Untitled Conversation"

// FileConfig 文件服务配置。
type FileConfig struct {
	ChunkSize        int
	FileContentLimit int
	FileImportance   float64
}

// FileService 处理上传、分块入库、向量化与文件读取。
type FileService struct {
	blobs         blob.Store
	files         store.FileStore
	chunks        store.ChunkStore
	conversations store.ConversationStore
	retriever     *Retriever
	memory        *MemoryStore
	cfg           FileConfig
	now           func() time.Time
}

// NewFileService 创建文件服务。
func NewFileService(blobs blob.Store, f store.Factory, retriever *Retriever, memory *MemoryStore, cfg FileConfig) *FileService {
	return &FileService{
		blobs:         blobs,
		files:         f.Files(),
		chunks:        f.Chunks(),
		conversations: f.Conversations(),
		retriever:     retriever,
		memory:        memory,
		cfg:           cfg,
		now:           time.Now,
	}
}

// FileID 由用户、会话和上传时间确定性地生成文件 ID。
func FileID(userID, conversationID string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%d.%06d", userID, conversationID, t.Unix(), t.Nanosecond()/int(time.Microsecond))
}

// Upload 保存原始文件，抽取文本并分块入库，写入元数据与文件记忆，最后写入向量索引。
// 向量写入失败只记录日志，上传仍然成功。
func (s *FileService) Upload(ctx context.Context, userID, conversationID, filename string, r io.Reader) (*model.FileMetadata, error) {
	if conversationID == "" {
		return nil, errors.ErrMissingConversation
	}
	if r == nil || strings.TrimSpace(filename) == "" {
		return nil, errors.ErrMissingFilePart
	}
	if !extract.Supported(filename) {
		return nil, errors.ErrUnsupportedFileType
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.ErrMissingFilePart.WithCause(err)
	}

	now := s.now().UTC()
	fileID := FileID(userID, conversationID, now)
	blobKey := fileID + "_" + filepath.Base(filename)
	if err := s.blobs.Put(ctx, blobKey, bytes.NewReader(data)); err != nil {
		return nil, errors.ErrInternal.WithCause(err)
	}

	text, fileType, err := extract.Bytes(filename, data)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupported) {
			return nil, errors.ErrUnsupportedFileType
		}
		return nil, errors.ErrDocumentParse.WithMessagef("Failed to parse document: %v", err).WithCause(err)
	}

	chunks := textutil.Chunk(text, s.cfg.ChunkSize)
	if err := s.chunks.Save(ctx, fileID, chunks); err != nil {
		return nil, err
	}

	meta := &model.FileMetadata{
		FileID:           fileID,
		UserID:           userID,
		ConversationID:   conversationID,
		OriginalFilename: filename,
		UploadTime:       now,
		FileType:         fileType,
		ChunkCount:       len(chunks),
		BlobKey:          blobKey,
	}
	if err := s.files.Create(ctx, meta); err != nil {
		return nil, err
	}

	memory := fmt.Sprintf("User uploaded a file named '%s' of type '%s'. The file contains: %s...",
		filename, fileType, textutil.Truncate(text, fileMemoryExcerpt))
	s.memory.Remember(ctx, userID, memory, conversationID, s.conversationTitle(ctx, userID, conversationID),
		model.KindFile, true, s.cfg.FileImportance, model.TopicDocument)

	if n, err := s.retriever.Upsert(ctx, fileID, chunks); err != nil {
		metrics.RetrievalFailure()
		logger.Warnw("failed to index file chunks", "file_id", fileID, "error", err.Error())
	} else {
		logger.Infow("file indexed", "file_id", fileID, "chunks", n)
	}

	metrics.Uploaded(fileType)
	return meta, nil
}

func (s *FileService) conversationTitle(ctx context.Context, userID, conversationID string) string {
	uc, err := s.conversations.Load(ctx, userID)
	if err != nil {
		return untitledConversation
	}
	if idx := uc.Find(conversationID); idx >= 0 && uc.Conversations[idx].Title != "" {
		return uc.Conversations[idx].Title
	}
	return untitledConversation
}

// ListUserFiles 返回用户的全部文件，最新的在前。
func (s *FileService) ListUserFiles(ctx context.Context, userID string) ([]model.FileListing, error) {
	metas, err := s.files.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return listings(metas), nil
}

// ListConversationFiles 返回会话的全部文件，最新的在前。
func (s *FileService) ListConversationFiles(ctx context.Context, userID, conversationID string) ([]model.FileListing, error) {
	metas, err := s.files.ListByConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	out := listings(metas)
	for i := range out {
		out[i].ConversationID = ""
		out[i].FileType = ""
	}
	return out, nil
}

func listings(metas []model.FileMetadata) []model.FileListing {
	out := make([]model.FileListing, 0, len(metas))
	for i := range metas {
		out = append(out, metas[i].Listing())
	}
	return out
}

// Latest 返回会话最近上传的文件，没有时返回 nil。
func (s *FileService) Latest(ctx context.Context, userID, conversationID string) (*model.FileMetadata, error) {
	metas, err := s.files.ListByConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, nil
	}
	return &metas[0], nil
}

// Attached 返回属于该用户与会话的文件元数据；文件不存在或不属于该会话时返回 ErrFileNotFound。
func (s *FileService) Attached(ctx context.Context, userID, conversationID, fileID string) (*model.FileMetadata, error) {
	meta, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if meta.UserID != userID || meta.ConversationID != conversationID {
		return nil, errors.ErrFileNotFound
	}
	return meta, nil
}

// LoadDocument 按块序号直接拼接还原文件全文。
func (s *FileService) LoadDocument(ctx context.Context, fileID string) (string, error) {
	chunks, err := s.chunks.List(ctx, fileID)
	if err != nil {
		return "", err
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, ""), nil
}

// Content 返回文件正文（截断到配置长度）与元数据。只允许文件所有者读取。
func (s *FileService) Content(ctx context.Context, userID, fileID string) (*model.FileContent, error) {
	meta, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if meta.UserID != userID {
		return nil, errors.ErrFileNotFound
	}
	content, err := s.LoadDocument(ctx, fileID)
	if err != nil {
		return nil, err
	}

	return &model.FileContent{
		FileID:           fileID,
		Filename:         meta.OriginalFilename,
		Content:          textutil.Truncate(content, s.cfg.FileContentLimit),
		ContentTruncated: utf8.RuneCountInString(content) > s.cfg.FileContentLimit,
		Metadata:         meta,
	}, nil
}
