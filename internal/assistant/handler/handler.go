// Package handler provides HTTP handlers for the assistant service.
package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/moktashif/internal/assistant/biz"
	"github.com/kart-io/moktashif/pkg/errors"
	"github.com/kart-io/moktashif/pkg/middleware"
	"github.com/kart-io/moktashif/pkg/utils/response"
)

// Handler handles assistant HTTP requests.
type Handler struct {
	conversations *biz.ConversationService
	chat          *biz.ChatService
	files         *biz.FileService
}

// New creates a Handler.
func New(conversations *biz.ConversationService, chat *biz.ChatService, files *biz.FileService) *Handler {
	return &Handler{
		conversations: conversations,
		chat:          chat,
		files:         files,
	}
}

// MessageResponse is the body of operations that only report an outcome.
type MessageResponse struct {
	Msg string `json:"msg"`
}

// bindJSON decodes the request body into v. An empty body leaves v untouched.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, errors.ErrBadRequest.WithCause(err))
		return false
	}
	return true
}

func userID(c *gin.Context) string {
	return middleware.UserID(c)
}
