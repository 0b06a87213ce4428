package biz

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/moktashif/internal/assistant/store"
	"github.com/kart-io/moktashif/internal/model"
	"github.com/kart-io/moktashif/internal/pkg/textutil"
	"github.com/kart-io/moktashif/pkg/id"
	"github.com/kart-io/moktashif/pkg/llm"
	assistantopts "github.com/kart-io/moktashif/pkg/options/assistant"
)

// memoryScanLimit 单次检索最多读取的记录数。
const memoryScanLimit = 500

// MemoryStore 是统一的记忆存储，通过 Kind 区分对话记忆、事实记忆和文件记忆。
// 所有方法都是尽力而为：失败只记录日志，不影响调用方。
type MemoryStore struct {
	records  store.MemoryStore
	embedder llm.EmbeddingProvider
	opts     *assistantopts.MemoryOptions
	now      func() time.Time
}

// NewMemoryStore 创建记忆存储。embedder 为 nil 时使用词重叠计算相似度。
func NewMemoryStore(records store.MemoryStore, embedder llm.EmbeddingProvider, opts *assistantopts.MemoryOptions) *MemoryStore {
	if opts == nil {
		opts = assistantopts.NewMemoryOptions()
	}
	return &MemoryStore{records: records, embedder: embedder, opts: opts, now: time.Now}
}

// Add 追加一条记忆记录。
func (m *MemoryStore) Add(ctx context.Context, rec model.MemoryRecord) {
	if rec.ID == "" {
		rec.ID = id.NewULID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now().UTC()
	}
	if rec.Kind == "" {
		rec.Kind = model.KindTurn
	}
	if m.embedder != nil && rec.Embedding == nil && rec.Text != "" {
		vec, err := m.embedder.EmbedSingle(ctx, rec.Text)
		if err != nil {
			logger.Warnw("failed to embed memory", "user_id", rec.UserID, "error", err.Error())
		} else {
			rec.Embedding = vec
		}
	}
	if err := m.records.Insert(ctx, &rec); err != nil {
		logger.Warnw("failed to store memory", "user_id", rec.UserID, "kind", string(rec.Kind), "error", err.Error())
	}
}

// AddTurn 记录一轮对话内容。
func (m *MemoryStore) AddTurn(ctx context.Context, userID, conversationID, text, role string, extra map[string]any) {
	m.Add(ctx, model.MemoryRecord{
		UserID:         userID,
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		Extra:          extra,
		Kind:           model.KindTurn,
	})
}

// Remember 记录事实或文件类记忆。
func (m *MemoryStore) Remember(ctx context.Context, userID, text, conversationID, title string, kind model.Kind, isFactual bool, importance float64, topic string) {
	m.Add(ctx, model.MemoryRecord{
		UserID:            userID,
		ConversationID:    conversationID,
		ConversationTitle: title,
		Role:              model.RoleUser,
		Text:              text,
		Kind:              kind,
		IsFactual:         isFactual,
		Importance:        importance,
		Topic:             topic,
	})
}

// HasFact 判断用户是否已记录过相同的事实。
func (m *MemoryStore) HasFact(ctx context.Context, userID, text string) bool {
	ok, err := m.records.HasText(ctx, userID, model.KindFact, text)
	if err != nil {
		logger.Warnw("failed to check fact", "user_id", userID, "error", err.Error())
		return false
	}
	return ok
}

type scoredRecord struct {
	rec   model.MemoryRecord
	score float64
}

// Relevant 返回与 query 相关的记忆，严格按会话分为当前会话与其他会话两组。
// 每组按 相似度、时间衰减、重要度 的加权和降序排列，并截断到配置的条数。
func (m *MemoryStore) Relevant(ctx context.Context, userID, query, conversationID string, kinds ...model.Kind) model.MemoryBuckets {
	buckets := model.MemoryBuckets{Current: []model.MemoryRecord{}, Other: []model.MemoryRecord{}}

	recs, err := m.records.List(ctx, userID, kinds, memoryScanLimit)
	if err != nil {
		logger.Warnw("failed to load memories", "user_id", userID, "error", err.Error())
		return buckets
	}
	if len(recs) == 0 {
		return buckets
	}

	var queryVec []float32
	if m.embedder != nil && query != "" {
		queryVec, err = m.embedder.EmbedSingle(ctx, query)
		if err != nil {
			logger.Warnw("failed to embed memory query", "user_id", userID, "error", err.Error())
			queryVec = nil
		}
	}

	now := m.now()
	var current, other []scoredRecord
	for _, rec := range recs {
		s := scoredRecord{rec: rec, score: m.score(rec, query, queryVec, now)}
		if rec.ConversationID == conversationID {
			current = append(current, s)
		} else {
			other = append(other, s)
		}
	}

	buckets.Current = m.rank(current)
	buckets.Other = m.rank(other)
	return buckets
}

func (m *MemoryStore) score(rec model.MemoryRecord, query string, queryVec []float32, now time.Time) float64 {
	var sim float64
	if len(queryVec) > 0 && len(rec.Embedding) == len(queryVec) {
		sim = textutil.NormalizeCosineSimilarity(textutil.CosineSimilarity(queryVec, rec.Embedding))
	} else {
		sim = textutil.TokenOverlap(query, rec.Text)
	}

	age := now.Sub(rec.CreatedAt)
	if age < 0 {
		age = 0
	}
	recency := math.Exp(-float64(age) / float64(m.opts.HalfLife))

	return m.opts.SimilarityWeight*sim + m.opts.RecencyWeight*recency + m.opts.ImportanceWeight*rec.Importance
}

func (m *MemoryStore) rank(in []scoredRecord) []model.MemoryRecord {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].score != in[j].score {
			return in[i].score > in[j].score
		}
		return in[i].rec.CreatedAt.After(in[j].rec.CreatedAt)
	})
	n := len(in)
	if m.opts.Limit > 0 && n > m.opts.Limit {
		n = m.opts.Limit
	}
	out := make([]model.MemoryRecord, n)
	for i := 0; i < n; i++ {
		out[i] = in[i].rec
	}
	return out
}
