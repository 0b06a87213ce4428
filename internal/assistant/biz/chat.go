package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/moktashif/internal/assistant/metrics"
	"github.com/kart-io/moktashif/internal/assistant/store"
	"github.com/kart-io/moktashif/internal/model"
	"github.com/kart-io/moktashif/internal/pkg/textutil"
	"github.com/kart-io/moktashif/internal/pkg/websearch"
	"github.com/kart-io/moktashif/pkg/errors"
	"github.com/kart-io/moktashif/pkg/id"
	"github.com/kart-io/moktashif/pkg/infra/pool"
	"github.com/kart-io/moktashif/pkg/llm"
)

const (
	apiErrorPrefix       = "[ERROR] API error: "
	webSearchErrorPrefix = "[ERROR] Web search error: "
	noAnswer             = "[No answer]"

	// documentMemoryExcerpt 文档加载记忆中引用的正文长度。
	documentMemoryExcerpt = 500
	// factExtractionTimeout 后台事实提取的超时时间。
	factExtractionTimeout = 2 * time.Minute
)

// ChatConfig 编排器配置。
type ChatConfig struct {
	HistoryWindow   int
	TopK            int
	ChunkSize       int
	SummaryMaxDepth int
	DocumentExcerpt int
	SearchContext   int
	FileImportance  float64
}

// ChatDeps 编排器依赖。
type ChatDeps struct {
	Conversations store.ConversationStore
	Files         *FileService
	Memory        *MemoryStore
	Facts         *FactExtractor
	Retriever     *Retriever
	Summarizer    *Summarizer
	Model         llm.ChatProvider
	Search        websearch.Answerer
	// Background 运行事实提取，为 nil 时使用独立 goroutine。
	Background *pool.Pool
}

// ChatService 按消息选择上下文分支，组装提示词并驱动流式回复。
type ChatService struct {
	ChatDeps
	cfg ChatConfig
	now func() time.Time
}

// NewChatService 创建编排器。
func NewChatService(deps ChatDeps, cfg ChatConfig) *ChatService {
	return &ChatService{ChatDeps: deps, cfg: cfg, now: time.Now}
}

// TurnRequest 是一轮对话的输入。
type TurnRequest struct {
	UserID         string
	ConversationID string
	Message        string
	ReplyTo        *model.ReplyTo
	FileID         string
	ForceWebSearch bool
}

// Turn 是一轮对话的输出。Fragments 按顺序产出回复片段，结束后关闭；
// Done 在持久化完成后关闭。
type Turn struct {
	Branch        Branch
	WebSearchUsed bool
	Fragments     <-chan string
	Done          <-chan struct{}
}

type turnMode int

const (
	modeChat turnMode = iota
	modeWebSearch
)

// turnContext 是同步阶段收集的本轮状态。
type turnContext struct {
	mode         turnMode
	req          TurnRequest
	message      string
	title        string
	history      []model.Message
	fileID       string
	filename     string
	document     string
	capturedFact string
	branch       Branch
}

// Chat 处理一轮普通对话。校验失败、会话不存在或自动附件失败时直接返回错误，不调用模型。
func (s *ChatService) Chat(ctx context.Context, req TurnRequest) (*Turn, error) {
	return s.start(ctx, req, modeChat)
}

// WebSearch 处理强制联网搜索的一轮对话。
func (s *ChatService) WebSearch(ctx context.Context, req TurnRequest) (*Turn, error) {
	req.ForceWebSearch = true
	return s.start(ctx, req, modeWebSearch)
}

func (s *ChatService) start(ctx context.Context, req TurnRequest, mode turnMode) (*Turn, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, errors.ErrMessageRequired
	}

	uc, idx, err := loadConversation(ctx, s.Conversations, req.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	conv := &uc.Conversations[idx]

	// 显式附件在任何副作用之前校验存在性与归属
	var attached *model.FileMetadata
	if req.FileID != "" {
		attached, err = s.Files.Attached(ctx, req.UserID, req.ConversationID, req.FileID)
		if err != nil {
			return nil, err
		}
	}

	tc := &turnContext{
		mode:    mode,
		req:     req,
		message: message,
		title:   conv.Title,
		history: append([]model.Message(nil), conv.Messages...),
	}
	if tc.title == "" {
		tc.title = untitledConversation
	}

	if mode == modeChat && attached == nil && IsFileRelated(message) {
		latest, err := s.Files.Latest(ctx, req.UserID, req.ConversationID)
		if err != nil {
			logger.Warnw("failed to look up latest file", "conversation_id", req.ConversationID, "error", err.Error())
		}
		if latest == nil {
			return nil, errors.ErrFileNotAttached
		}
		attached = latest
		logger.Debugw("auto-attached latest file", "file_id", latest.FileID)
	}
	if attached != nil {
		tc.fileID = attached.FileID
		tc.filename = attached.OriginalFilename
	}

	if ok, fact := s.Facts.Capture(ctx, req.UserID, req.ConversationID, tc.title, message); ok {
		tc.capturedFact = fact
	}
	s.Memory.AddTurn(ctx, req.UserID, req.ConversationID, message, model.RoleUser, replyExtra(req.ReplyTo))

	now := s.now().UTC()
	userMsg := model.Message{
		ID:        id.NewULID(),
		Role:      model.RoleUser,
		Content:   message,
		Timestamp: now,
		ReplyTo:   req.ReplyTo,
	}
	if attached != nil {
		userMsg.FileID = attached.FileID
		userMsg.FileName = attached.OriginalFilename
		userMsg.HasFile = true
	}
	conv.Messages = append(conv.Messages, userMsg)
	conv.UpdatedAt = now
	if err := s.Conversations.Save(ctx, uc); err != nil {
		return nil, err
	}

	if tc.fileID != "" {
		s.loadDocument(ctx, tc)
	}

	if mode == modeWebSearch {
		tc.branch = BranchWebSearch
	} else {
		tc.branch = Classify(TurnSignals{
			Message:        message,
			DocumentLoaded: tc.document != "",
			FileAttached:   tc.fileID != "",
			ForceWebSearch: req.ForceWebSearch,
		})
	}
	metrics.TurnStarted(tc.branch.String())

	out := make(chan string)
	done := make(chan struct{})
	go s.run(ctx, tc, out, done)

	return &Turn{
		Branch:        tc.branch,
		WebSearchUsed: tc.branch == BranchWebSearch,
		Fragments:     out,
		Done:          done,
	}, nil
}

// loadDocument 读取附件全文并记录文档加载记忆，失败时视为没有文档。
func (s *ChatService) loadDocument(ctx context.Context, tc *turnContext) {
	doc, err := s.Files.LoadDocument(ctx, tc.fileID)
	if err != nil {
		logger.Warnw("failed to load document", "file_id", tc.fileID, "error", err.Error())
		return
	}
	tc.document = doc
	if doc == "" {
		return
	}
	memory := fmt.Sprintf("Document loaded: '%s' with content: %s...", tc.filename, textutil.Truncate(doc, documentMemoryExcerpt))
	s.Memory.Remember(ctx, tc.req.UserID, memory, tc.req.ConversationID, tc.title,
		model.KindFile, true, s.cfg.FileImportance, model.TopicDocument)
}

// run 是生产者：产出片段、在失败时追加错误片段，并保证只执行一次持久化。
func (s *ChatService) run(ctx context.Context, tc *turnContext, out chan<- string, done chan<- struct{}) {
	var acc strings.Builder
	defer close(done)
	defer func() {
		close(out)
		s.finalize(context.WithoutCancel(ctx), tc, acc.String())
	}()

	emit := func(fragment string) bool {
		if fragment == "" {
			return true
		}
		acc.WriteString(fragment)
		select {
		case out <- fragment:
			return true
		case <-ctx.Done():
			return false
		}
	}

	err := s.produce(ctx, tc, emit)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		return
	}

	metrics.UpstreamError()
	logger.Warnw("turn failed", "conversation_id", tc.req.ConversationID, "branch", tc.branch.String(), "error", err.Error())

	prefix := apiErrorPrefix
	if tc.mode == modeWebSearch {
		prefix = webSearchErrorPrefix
	}
	fragment := prefix + errorDetail(err)
	acc.WriteString(fragment)
	select {
	case out <- fragment:
	case <-ctx.Done():
	}
}

func (s *ChatService) produce(ctx context.Context, tc *turnContext, emit func(string) bool) error {
	switch tc.branch {
	case BranchDocument:
		answer, err := s.documentAnswer(ctx, tc)
		if err != nil {
			return err
		}
		emitLines(answer, emit)
		return nil
	case BranchWebSearch:
		// 分支已选定联网，三种触发条件都必须实际搜索
		ans, err := s.Search.Answer(ctx, s.searchQuery(ctx, tc), true)
		if err != nil {
			return err
		}
		answer := ans.Answer
		if answer == "" {
			answer = noAnswer
		}
		emitLines(answer, emit)
		return nil
	default:
		return s.streamMemoryAnswer(ctx, tc, emit)
	}
}

func emitLines(answer string, emit func(string) bool) {
	for _, line := range splitLines(answer) {
		if !emit(line) {
			return
		}
	}
}

// documentAnswer 概括性问题走层级摘要；其他问题用检索到的块逐块回答后合并，检索不可用时退回基于摘要回答。
func (s *ChatService) documentAnswer(ctx context.Context, tc *turnContext) (string, error) {
	complete := CompleteWith(s.Model)
	if IsGeneralFileQuestion(tc.message) {
		return s.Summarizer.Summarize(ctx, tc.document, complete, s.cfg.ChunkSize, s.cfg.SummaryMaxDepth)
	}

	chunks, err := s.Retriever.Query(ctx, tc.message, tc.fileID, s.cfg.TopK)
	if err != nil {
		metrics.RetrievalFailure()
		logger.Warnw("retrieval unavailable, answering from summary", "file_id", tc.fileID, "error", err.Error())
	}
	if err != nil || len(chunks) == 0 {
		return s.Summarizer.Answer(ctx, tc.document, tc.message, complete, s.cfg.ChunkSize)
	}

	answers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		answer, err := call(ctx, complete, chunkQuestionPrompt(chunk, tc.message))
		if err != nil {
			return "", err
		}
		answers = append(answers, answer)
	}
	return call(ctx, complete, combineAnswersPrompt(answers))
}

// searchQuery 构造联网搜索的查询。强制搜索端点会附加回复引用、文件摘录和跨会话事实。
func (s *ChatService) searchQuery(ctx context.Context, tc *turnContext) string {
	if tc.mode == modeChat {
		if tc.document == "" {
			return tc.message
		}
		return fmt.Sprintf("%s regarding: %s...", tc.message, textutil.Truncate(tc.document, s.cfg.SearchContext))
	}

	query := tc.message
	if reply := ResolveReply(tc.history, tc.req.ReplyTo); reply != nil {
		query = fmt.Sprintf("%s\n\nPrevious message context: %s", query, reply.Content)
	}
	if tc.document != "" {
		query = fmt.Sprintf("%s regarding file '%s': %s...", query, tc.filename, textutil.Truncate(tc.document, s.cfg.SearchContext))
	}

	facts := s.Memory.Relevant(ctx, tc.req.UserID, tc.message, tc.req.ConversationID, model.KindFact, model.KindFile)
	if len(facts.Other) > 0 {
		var sb strings.Builder
		sb.WriteString("\n\nIMPORTANT CONTEXT FROM OTHER CONVERSATIONS:")
		for _, m := range facts.Other {
			fmt.Fprintf(&sb, "\n- From '%s': %s", m.ConversationTitle, m.Text)
		}
		query = fmt.Sprintf("%s\n\nAdditional context: %s", query, sb.String())
	}
	return query
}

// streamMemoryAnswer 组装记忆分支的提示词并流式调用模型。
func (s *ChatService) streamMemoryAnswer(ctx context.Context, tc *turnContext, emit func(string) bool) error {
	reply := ResolveReply(tc.history, tc.req.ReplyTo)
	system := BuildSystemPrompt(PromptParts{
		CapturedFact: tc.capturedFact,
		Facts:        s.Memory.Relevant(ctx, tc.req.UserID, tc.message, tc.req.ConversationID, model.KindFact, model.KindFile),
		Reply:        reply,
		Turns:        s.Memory.Relevant(ctx, tc.req.UserID, tc.message, tc.req.ConversationID, model.KindTurn),
		Document:     tc.document,
		DocLimit:     s.cfg.DocumentExcerpt,
	})

	var history []model.Message
	if reply != nil {
		history = append(reply.Messages, model.Message{Role: model.RoleUser, Content: tc.message})
	} else {
		all := append(tc.history, model.Message{Role: model.RoleUser, Content: tc.message})
		history = lastN(all, s.cfg.HistoryWindow)
	}

	stream, err := llm.Stream(ctx, s.Model, toLLMMessages(system, history))
	if err != nil {
		return errors.ErrUpstream.WithCause(err)
	}
	for chunk := range stream {
		if chunk.Err != nil {
			return errors.ErrUpstream.WithCause(chunk.Err)
		}
		if !emit(chunk.Content) {
			return ctx.Err()
		}
	}
	return nil
}

// finalize 持久化已产出的回复并调度事实提取。内容为空时不写入。
func (s *ChatService) finalize(ctx context.Context, tc *turnContext, content string) {
	if content == "" {
		return
	}

	req := tc.req
	s.Memory.AddTurn(ctx, req.UserID, req.ConversationID, content, model.RoleAssistant, replyExtra(req.ReplyTo))

	uc, idx, err := loadConversation(ctx, s.Conversations, req.UserID, req.ConversationID)
	if err != nil {
		logger.Warnw("failed to reload conversation for reply", "conversation_id", req.ConversationID, "error", err.Error())
		return
	}
	now := s.now().UTC()
	conv := &uc.Conversations[idx]
	conv.Messages = append(conv.Messages, model.Message{
		ID:        id.NewULID(),
		Role:      model.RoleAssistant,
		Content:   content,
		Timestamp: now,
		ReplyTo:   req.ReplyTo,
	})
	conv.UpdatedAt = now
	if err := s.Conversations.Save(ctx, uc); err != nil {
		logger.Errorw("failed to persist assistant reply", "conversation_id", req.ConversationID, "error", err.Error())
	}

	s.scheduleFacts(req.UserID, tc.message, content, req.ConversationID, tc.title)
}

func (s *ChatService) scheduleFacts(userID, userMessage, assistantMessage, conversationID, title string) {
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), factExtractionTimeout)
		defer cancel()
		s.Facts.ExtractAndStoreFacts(ctx, userID, userMessage, assistantMessage, conversationID, title)
	}
	if s.Background != nil {
		s.Background.Go(task)
		return
	}
	go task()
}

// EditMessage 修改用户消息并重新生成紧随其后的助手回复，之后的消息全部丢弃。
// 所有校验在修改前完成；模型调用失败时不保存任何修改。
func (s *ChatService) EditMessage(ctx context.Context, userID, conversationID string, index int, content string) (*model.Conversation, error) {
	uc, idx, err := loadConversation(ctx, s.Conversations, userID, conversationID)
	if err != nil {
		return nil, err
	}
	conv := &uc.Conversations[idx]

	if index < 0 || index >= len(conv.Messages) || conv.Messages[index].Role != model.RoleUser {
		return nil, errors.ErrInvalidMessageIndex
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.ErrContentRequired
	}
	if index+1 >= len(conv.Messages) || conv.Messages[index+1].Role != model.RoleAssistant {
		return nil, errors.ErrNoAssistantReply
	}

	title := conv.Title
	if title == "" {
		title = untitledConversation
	}
	now := s.now().UTC()

	user := &conv.Messages[index]
	user.Versions = append(user.Versions, model.MessageVersion{Content: user.Content, Timestamp: user.Timestamp})
	user.Content = content
	user.Timestamp = now

	var captured string
	if ok, fact := s.Facts.Capture(ctx, userID, conversationID, title, content); ok {
		captured = fact
	}

	assistant := &conv.Messages[index+1]
	assistant.Versions = append(assistant.Versions, model.MessageVersion{Content: assistant.Content, Timestamp: assistant.Timestamp})
	conv.Messages = conv.Messages[:index+2]

	var document string
	if user.FileID != "" {
		doc, err := s.Files.LoadDocument(ctx, user.FileID)
		if err != nil {
			logger.Warnw("failed to load document for edit", "file_id", user.FileID, "error", err.Error())
		}
		document = doc
	}

	system := BuildSystemPrompt(PromptParts{
		CapturedFact: captured,
		Facts:        s.Memory.Relevant(ctx, userID, content, conversationID, model.KindFact, model.KindFile),
		Document:     document,
		DocLimit:     s.cfg.DocumentExcerpt,
	})
	reply, err := s.Model.Chat(ctx, toLLMMessages(system, conv.Messages[:index+1]))
	if err != nil {
		metrics.UpstreamError()
		return nil, errors.ErrUpstream.WithCause(err)
	}

	assistant = &conv.Messages[index+1]
	assistant.Content = reply
	assistant.Timestamp = now
	conv.UpdatedAt = now

	if err := s.Conversations.Save(ctx, uc); err != nil {
		return nil, err
	}
	s.scheduleFacts(userID, content, reply, conversationID, title)
	return conv, nil
}

func replyExtra(ref *model.ReplyTo) map[string]any {
	if ref == nil {
		return nil
	}
	return map[string]any{"replyTo": ref}
}

func lastN(messages []model.Message, n int) []model.Message {
	if n > 0 && len(messages) > n {
		return messages[len(messages)-n:]
	}
	return messages
}

func toLLMMessages(system string, history []model.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, m := range history {
		out = append(out, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return out
}

// errorDetail 返回面向用户的错误描述，优先使用上游原因。
func errorDetail(err error) string {
	var e *errors.Errno
	if errors.As(err, &e) {
		if cause := e.Unwrap(); cause != nil {
			return cause.Error()
		}
		return e.MessageEN
	}
	return err.Error()
}
