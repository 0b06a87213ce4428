package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/moktashif/internal/assistant/store"
	"github.com/kart-io/moktashif/pkg/errors"
	"github.com/kart-io/moktashif/pkg/llm"
)

// Retriever 负责文档块的向量化写入与相似度检索。
type Retriever struct {
	embedder llm.EmbeddingProvider
	vectors  store.VectorStore
}

// NewRetriever 创建检索器。
func NewRetriever(embedder llm.EmbeddingProvider, vectors store.VectorStore) *Retriever {
	return &Retriever{embedder: embedder, vectors: vectors}
}

// ChunkID 返回文档块在向量索引中的 ID。
func ChunkID(fileID string, index int) string {
	return fmt.Sprintf("%s-chunk%d", fileID, index)
}

// Upsert 为文档块生成向量并写入索引，返回写入条数。
func (r *Retriever) Upsert(ctx context.Context, fileID string, chunks []string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	embeddings, err := r.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, errors.ErrRetrievalUnavailable.WithCause(err)
	}
	if len(embeddings) != len(chunks) {
		return 0, errors.ErrRetrievalUnavailable.WithMessagef("embedding count mismatch: %d vs %d", len(embeddings), len(chunks))
	}

	records := make([]store.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = store.VectorRecord{
			ID:         ChunkID(fileID, i),
			FileID:     fileID,
			ChunkIndex: i,
			Text:       chunk,
			Embedding:  embeddings[i],
		}
	}
	if err := r.vectors.Upsert(ctx, records); err != nil {
		return 0, errors.ErrRetrievalUnavailable.WithCause(err)
	}
	return len(records), nil
}

// Query 返回与问题最相似的块文本，按相似度降序，最多 topK 条。
// fileID 为空时在全部文件中检索。
func (r *Retriever) Query(ctx context.Context, question, fileID string, topK int) ([]string, error) {
	if topK <= 0 {
		return []string{}, nil
	}

	vector, err := r.embedder.EmbedSingle(ctx, question)
	if err != nil {
		return nil, errors.ErrRetrievalUnavailable.WithCause(err)
	}

	hits, err := r.vectors.Search(ctx, vector, topK, fileID)
	if err != nil {
		return nil, errors.ErrRetrievalUnavailable.WithCause(err)
	}

	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		if len(texts) == topK {
			break
		}
		texts = append(texts, h.Text)
	}
	return texts, nil
}
