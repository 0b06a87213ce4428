package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/moktashif/pkg/component/milvus"
)

// Milvus 集合中的标量字段。
const (
	fieldFileID     = "file_id"
	fieldChunkIndex = "chunk_index"
	fieldText       = "text"
)

var _ VectorStore = (*MilvusVectorStore)(nil)

// MilvusVectorStore 实现基于 Milvus 的向量索引。
type MilvusVectorStore struct {
	client     *milvus.Client
	collection string
}

// NewMilvusVectorStore 创建向量索引，集合不存在时自动创建。
func NewMilvusVectorStore(ctx context.Context, client *milvus.Client, collection string, dimension int) (*MilvusVectorStore, error) {
	schema := &milvus.CollectionSchema{
		Name:        collection,
		Description: "Moktashif document chunks",
		Dimension:   dimension,
		MetaFields: []milvus.MetaField{
			{Name: fieldFileID, DataType: entity.FieldTypeVarChar, MaxLen: 512},
			{Name: fieldChunkIndex, DataType: entity.FieldTypeInt64},
			{Name: fieldText, DataType: entity.FieldTypeVarChar, MaxLen: 65535},
		},
	}
	if err := client.EnsureCollection(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %s: %w", collection, err)
	}
	return &MilvusVectorStore{client: client, collection: collection}, nil
}

// Name 返回后端名称。
func (s *MilvusVectorStore) Name() string { return "milvus" }

// Upsert 批量写入文档块向量。
func (s *MilvusVectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := &milvus.Rows{
		IDs:        make([]string, len(records)),
		Embeddings: make([][]float32, len(records)),
		VarChars: map[string][]string{
			fieldFileID: make([]string, len(records)),
			fieldText:   make([]string, len(records)),
		},
		Int64s: map[string][]int64{
			fieldChunkIndex: make([]int64, len(records)),
		},
	}
	for i, r := range records {
		rows.IDs[i] = r.ID
		rows.Embeddings[i] = r.Embedding
		rows.VarChars[fieldFileID][i] = r.FileID
		rows.VarChars[fieldText][i] = r.Text
		rows.Int64s[fieldChunkIndex][i] = int64(r.ChunkIndex)
	}
	return s.client.Upsert(ctx, s.collection, rows)
}

// Search 向量相似度搜索，fileID 非空时按文件过滤。
func (s *MilvusVectorStore) Search(ctx context.Context, vector []float32, topK int, fileID string) ([]VectorHit, error) {
	filter := ""
	if fileID != "" {
		filter = FileFilter(fileID)
	}

	results, err := s.client.Search(ctx, s.collection, vector, topK, filter,
		[]string{fieldFileID, fieldChunkIndex, fieldText})
	if err != nil {
		return nil, err
	}

	hits := make([]VectorHit, 0, len(results))
	for _, r := range results {
		hit := VectorHit{ID: r.ID, Score: r.Score}
		hit.FileID, _ = r.Metadata[fieldFileID].(string)
		hit.Text, _ = r.Metadata[fieldText].(string)
		if idx, ok := r.Metadata[fieldChunkIndex].(int64); ok {
			hit.ChunkIndex = int(idx)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// FileFilter 返回只匹配指定文件的过滤表达式。
func FileFilter(fileID string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(fileID)
	return fmt.Sprintf(`%s == "%s"`, fieldFileID, escaped)
}
