package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/moktashif/internal/model"
	"github.com/kart-io/moktashif/pkg/errors"
	"github.com/kart-io/moktashif/pkg/utils/response"
)

// editTimeout bounds the non-streamed regeneration of an edited turn.
const editTimeout = 2 * time.Minute

// ConversationResponse wraps a single conversation.
type ConversationResponse struct {
	Conversation *model.Conversation `json:"conversation"`
}

// ConversationListResponse wraps conversation summaries.
type ConversationListResponse struct {
	Conversations []model.ConversationSummary `json:"conversations"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []model.SearchResult `json:"results"`
}

// CreateConversationRequest is the body of a create request.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// RenameConversationRequest is the body of a rename request.
type RenameConversationRequest struct {
	Title string `json:"title"`
}

// EditMessageRequest is the body of an edit request.
type EditMessageRequest struct {
	Content string `json:"content"`
}

// CreateConversation creates a conversation.
func (h *Handler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if !bindJSON(c, &req) {
		return
	}

	conv, err := h.conversations.Create(c.Request.Context(), userID(c), req.Title)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ConversationResponse{Conversation: conv})
}

// ListConversations lists conversation summaries.
func (h *Handler) ListConversations(c *gin.Context) {
	list, err := h.conversations.List(c.Request.Context(), userID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ConversationListResponse{Conversations: list})
}

// GetConversation returns a conversation with its messages.
func (h *Handler) GetConversation(c *gin.Context) {
	conv, err := h.conversations.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ConversationResponse{Conversation: conv})
}

// DeleteConversation deletes a conversation.
func (h *Handler) DeleteConversation(c *gin.Context) {
	if err := h.conversations.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, MessageResponse{Msg: "Conversation deleted."})
}

// RenameConversation changes a conversation's title.
func (h *Handler) RenameConversation(c *gin.Context) {
	var req RenameConversationRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.conversations.Rename(c.Request.Context(), userID(c), c.Param("id"), req.Title); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, MessageResponse{Msg: "Conversation renamed."})
}

// SearchConversations searches titles, then message contents.
func (h *Handler) SearchConversations(c *gin.Context) {
	results, err := h.conversations.Search(c.Request.Context(), userID(c), c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, SearchResponse{Results: results})
}

// EditMessage replaces a user message and regenerates the reply after it.
func (h *Handler) EditMessage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, errors.ErrInvalidMessageIndex)
		return
	}
	var req EditMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), editTimeout)
	defer cancel()

	conv, err := h.chat.EditMessage(ctx, userID(c), c.Param("id"), index, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ConversationResponse{Conversation: conv})
}
