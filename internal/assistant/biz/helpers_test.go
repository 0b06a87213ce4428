package biz

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/moktashif/internal/assistant/store"
	"github.com/kart-io/moktashif/internal/pkg/blob"
	"github.com/kart-io/moktashif/internal/pkg/websearch"
	"github.com/kart-io/moktashif/pkg/llm"
	assistantopts "github.com/kart-io/moktashif/pkg/options/assistant"
)

// fakeChat 按脚本回复；事实分类请求根据 facts 表回答。
type fakeChat struct {
	mu     sync.Mutex
	calls  [][]llm.Message
	facts  map[string]string
	answer func(messages []llm.Message) (string, error)
}

func newFakeChat(answer func(messages []llm.Message) (string, error)) *fakeChat {
	return &fakeChat{facts: map[string]string{}, answer: answer}
}

func (f *fakeChat) Name() string { return "fake" }

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.mu.Unlock()

	if len(messages) > 0 && messages[0].Content == factClassifierPrompt {
		if fact, ok := f.facts[messages[len(messages)-1].Content]; ok {
			return "YES: " + fact, nil
		}
		return "NO", nil
	}
	return f.answer(messages)
}

func (f *fakeChat) Generate(ctx context.Context, prompt, system string) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: llm.RoleSystem, Content: system}, {Role: llm.RoleUser, Content: prompt}})
}

// modelCalls 返回非事实分类的调用。
func (f *fakeChat) modelCalls() [][]llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]llm.Message
	for _, c := range f.calls {
		if len(c) > 0 && c[0].Content == factClassifierPrompt {
			continue
		}
		out = append(out, c)
	}
	return out
}

// fakeStreamer 先输出 chunks，再以 err 结束。
type fakeStreamer struct {
	*fakeChat
	chunks []string
	err    error
}

func (f *fakeStreamer) ChatStream(_ context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.mu.Unlock()

	out := make(chan llm.StreamChunk, len(f.chunks)+1)
	for _, c := range f.chunks {
		out <- llm.StreamChunk{Content: c}
	}
	if f.err != nil {
		out <- llm.StreamChunk{Err: f.err}
	}
	close(out)
	return out, nil
}

// hashEmbedder 把词哈希到固定维度，结果确定。
type hashEmbedder struct {
	err error
}

const testDim = 32

func (h *hashEmbedder) Name() string { return "hash" }

func (h *hashEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	if h.err != nil {
		return nil, h.err
	}
	vec := make([]float32, testDim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		hf := fnv.New32a()
		_, _ = hf.Write([]byte(tok))
		vec[hf.Sum32()%testDim]++
	}
	return vec, nil
}

func (h *hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type fakeAnswerer struct {
	mu      sync.Mutex
	queries []string
	forced  []bool
	answer  string
	err     error
}

func (f *fakeAnswerer) Answer(_ context.Context, query string, force bool) (*websearch.Answer, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.forced = append(f.forced, force)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &websearch.Answer{Answer: f.answer, UsedWebSearch: true}, nil
}

// stubSearcher 返回固定的搜索结果。
type stubSearcher struct {
	mu      sync.Mutex
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string, _ int) ([]websearch.Result, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	return []websearch.Result{{Title: "Match report", Link: "https://example.com/match", Snippet: "Final score 2-1"}}, nil
}

type testEnv struct {
	factory  store.Factory
	chat     *fakeChat
	search   *fakeAnswerer
	memory   *MemoryStore
	convs    *ConversationService
	files    *FileService
	svc      *ChatService
	embedder *hashEmbedder
}

func newTestEnv(t *testing.T, model llm.ChatProvider, chat *fakeChat) *testEnv {
	t.Helper()

	factory := store.NewMemoryFactory()
	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)

	opts := assistantopts.NewOptions()
	embedder := &hashEmbedder{}
	memory := NewMemoryStore(factory.Memories(), embedder, opts.Memory)
	retriever := NewRetriever(embedder, store.NewMemoryVectorStore())
	files := NewFileService(blobs, factory, retriever, memory, FileConfig{
		ChunkSize:        opts.ChunkSize,
		FileContentLimit: opts.FileContentLimit,
		FileImportance:   opts.Memory.FileImportance,
	})
	search := &fakeAnswerer{answer: "web line 1\nweb line 2"}

	svc := NewChatService(ChatDeps{
		Conversations: factory.Conversations(),
		Files:         files,
		Memory:        memory,
		Facts:         NewFactExtractor(chat, memory, opts.Memory.FactImportance),
		Retriever:     retriever,
		Summarizer:    NewSummarizer(nil, opts.SummaryMaxDepth),
		Model:         model,
		Search:        search,
	}, ChatConfig{
		HistoryWindow:   opts.HistoryWindow,
		TopK:            opts.TopK,
		ChunkSize:       opts.ChunkSize,
		SummaryMaxDepth: opts.SummaryMaxDepth,
		DocumentExcerpt: opts.DocumentExcerpt,
		SearchContext:   opts.SearchContext,
		FileImportance:  opts.Memory.FileImportance,
	})

	return &testEnv{
		factory:  factory,
		chat:     chat,
		search:   search,
		memory:   memory,
		convs:    NewConversationService(factory.Conversations()),
		files:    files,
		svc:      svc,
		embedder: embedder,
	}
}

// drain 读取全部片段并等待持久化完成。
func drain(t *testing.T, turn *Turn) string {
	t.Helper()
	var sb strings.Builder
	for f := range turn.Fragments {
		sb.WriteString(f)
	}
	select {
	case <-turn.Done:
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not finish")
	}
	return sb.String()
}

func lastContent(messages []llm.Message) string {
	return messages[len(messages)-1].Content
}
