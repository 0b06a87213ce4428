package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(&Errno{
	Code:      0,
	HTTP:      http.StatusOK,
	GRPCCode:  codes.OK,
	MessageEN: "Success",
	MessageZH: "成功",
})

// ============================================================================
// Common errors shared by every service
// ============================================================================

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0),
		http.StatusBadRequest, codes.InvalidArgument, "Bad request", "请求错误"))

	// ErrInvalidParam indicates an invalid parameter.
	ErrInvalidParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1),
		http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "参数无效"))

	// ErrUnauthorized indicates the request is not authenticated.
	ErrUnauthorized = Register(New(MakeCode(ServiceCommon, CategoryAuth, 0),
		http.StatusUnauthorized, codes.Unauthenticated, "Unauthorized", "未认证"))

	// ErrInvalidToken indicates the token is invalid.
	ErrInvalidToken = Register(New(MakeCode(ServiceCommon, CategoryAuth, 1),
		http.StatusUnauthorized, codes.Unauthenticated, "Invalid token", "令牌无效"))

	// ErrNotFound indicates a generic missing resource.
	ErrNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 0),
		http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))

	// ErrConflict indicates a generic conflict.
	ErrConflict = Register(New(MakeCode(ServiceCommon, CategoryConflict, 0),
		http.StatusConflict, codes.AlreadyExists, "Resource conflict", "资源冲突"))

	// ErrInternal indicates an internal server error.
	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0),
		http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))

	// ErrDatabase indicates a storage failure.
	ErrDatabase = Register(New(MakeCode(ServiceCommon, CategoryDatabase, 0),
		http.StatusInternalServerError, codes.Internal, "Database error", "数据库错误"))

	// ErrServiceUnavailable indicates the service is unavailable.
	ErrServiceUnavailable = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 0),
		http.StatusServiceUnavailable, codes.Unavailable, "Service unavailable", "服务不可用"))

	// ErrTimeout indicates the operation timed out.
	ErrTimeout = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 0),
		http.StatusGatewayTimeout, codes.DeadlineExceeded, "Request timeout", "请求超时"))
)
