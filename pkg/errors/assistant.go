package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 助手服务错误码: 21
// 错误码格式: AABBCCC
// - AA: 21 (assistant 服务)
// - BB: 类别代码
// - CCC: 序号

var (
	// 请求参数错误 (类别 01)
	ErrMessageRequired      = Register(New(MakeCode(ServiceAssistant, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Message required.", "消息不能为空"))
	ErrTitleRequired        = Register(New(MakeCode(ServiceAssistant, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Title required.", "标题不能为空"))
	ErrContentRequired      = Register(New(MakeCode(ServiceAssistant, CategoryRequest, 3), http.StatusBadRequest, codes.InvalidArgument, "Content required.", "内容不能为空"))
	ErrInvalidMessageIndex  = Register(New(MakeCode(ServiceAssistant, CategoryRequest, 4), http.StatusBadRequest, codes.InvalidArgument, "Invalid message index or not a user message.", "消息索引无效或不是用户消息"))
	ErrNoAssistantReply     = Register(New(MakeCode(ServiceAssistant, CategoryRequest, 5), http.StatusBadRequest, codes.FailedPrecondition, "No assistant response after this message.", "该消息之后没有助手回复"))
	ErrUnsupportedFileType  = Register(New(MakeCode(ServiceAssistant, CategoryRequest, 6), http.StatusBadRequest, codes.InvalidArgument, "File type not allowed", "不支持的文件类型"))
	ErrMissingFilePart      = Register(New(MakeCode(ServiceAssistant, CategoryRequest, 7), http.StatusBadRequest, codes.InvalidArgument, "No file part", "缺少文件"))
	ErrMissingConversation  = Register(New(MakeCode(ServiceAssistant, CategoryRequest, 8), http.StatusBadRequest, codes.InvalidArgument, "Missing conversation_id parameter", "缺少 conversation_id 参数"))
	ErrDocumentParse        = Register(New(MakeCode(ServiceAssistant, CategoryRequest, 9), http.StatusBadRequest, codes.InvalidArgument, "Failed to parse document", "文档解析失败"))
	ErrFileNotAttached      = Register(New(MakeCode(ServiceAssistant, CategoryRequest, 10), http.StatusBadRequest, codes.FailedPrecondition, "It looks like you're asking about a file, but I couldn't find any uploaded file for this conversation. Please re-attach the file and try again.", "未找到该会话的上传文件，请重新上传后再试"))

	// 资源不存在 (类别 04)
	ErrUserNotFound         = Register(New(MakeCode(ServiceAssistant, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "User not found.", "用户不存在"))
	ErrConversationNotFound = Register(New(MakeCode(ServiceAssistant, CategoryResource, 2), http.StatusNotFound, codes.NotFound, "Conversation not found.", "会话不存在"))
	ErrMessageNotFound      = Register(New(MakeCode(ServiceAssistant, CategoryResource, 3), http.StatusNotFound, codes.NotFound, "Message not found.", "消息不存在"))
	ErrFileNotFound         = Register(New(MakeCode(ServiceAssistant, CategoryResource, 4), http.StatusNotFound, codes.NotFound, "File not found or not authorized", "文件不存在或无权访问"))

	// 冲突 (类别 05)
	ErrDuplicateTitle = Register(New(MakeCode(ServiceAssistant, CategoryConflict, 1), http.StatusConflict, codes.AlreadyExists, "A conversation with this name already exists.", "同名会话已存在"))

	// 上游服务 (类别 10)
	ErrUpstream             = Register(New(MakeCode(ServiceAssistant, CategoryNetwork, 1), http.StatusBadGateway, codes.Unavailable, "Upstream service error", "上游服务错误"))
	ErrRetrievalUnavailable = Register(New(MakeCode(ServiceAssistant, CategoryNetwork, 2), http.StatusServiceUnavailable, codes.Unavailable, "Retrieval backend unavailable", "检索服务不可用"))
)
