package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/moktashif/internal/assistant/biz"
	"github.com/kart-io/moktashif/internal/assistant/metrics"
	"github.com/kart-io/moktashif/internal/model"
	"github.com/kart-io/moktashif/pkg/utils/response"
)

// HeaderWebSearchUsed reports whether the streamed answer came from web search.
const HeaderWebSearchUsed = "X-Web-Search-Used"

// ChatRequest is the body of a chat or web search turn.
type ChatRequest struct {
	Message        string         `json:"message"`
	ForceWebSearch bool           `json:"force_web_search"`
	ReplyTo        *model.ReplyTo `json:"replyTo"`
	FileID         string         `json:"file_id"`
}

func (r *ChatRequest) turn(c *gin.Context) biz.TurnRequest {
	return biz.TurnRequest{
		UserID:         userID(c),
		ConversationID: c.Param("id"),
		Message:        r.Message,
		ReplyTo:        r.ReplyTo,
		FileID:         r.FileID,
		ForceWebSearch: r.ForceWebSearch,
	}
}

// Chat runs a chat turn and streams the answer as plain text.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if !bindJSON(c, &req) {
		return
	}

	turn, err := h.chat.Chat(c.Request.Context(), req.turn(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	stream(c, turn)
}

// WebSearch runs a forced web search turn and streams the answer as plain text.
func (h *Handler) WebSearch(c *gin.Context) {
	var req ChatRequest
	if !bindJSON(c, &req) {
		return
	}

	turn, err := h.chat.WebSearch(c.Request.Context(), req.turn(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	stream(c, turn)
}

// stream writes and flushes fragments as they are produced. After a write
// failure the remaining fragments are drained so the turn still finishes and
// is persisted.
func stream(c *gin.Context, turn *biz.Turn) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header(HeaderWebSearchUsed, strconv.FormatBool(turn.WebSearchUsed))
	c.Status(http.StatusOK)

	metrics.StreamOpened()
	start := time.Now()
	defer func() { metrics.StreamClosed(turn.Branch.String(), time.Since(start)) }()

	w := c.Writer
	for fragment := range turn.Fragments {
		if _, err := io.WriteString(w, fragment); err != nil {
			break
		}
		w.Flush()
	}

	for range turn.Fragments {
	}
	<-turn.Done
}
