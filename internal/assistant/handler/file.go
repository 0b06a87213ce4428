package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/moktashif/internal/model"
	"github.com/kart-io/moktashif/pkg/errors"
	"github.com/kart-io/moktashif/pkg/utils/response"
)

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	Msg      string `json:"msg"`
	FileType string `json:"filetype"`
	Filename string `json:"filename"`
	FileID   string `json:"file_id"`
}

// FileListResponse wraps file listings.
type FileListResponse struct {
	Files []model.FileListing `json:"files"`
}

// Upload accepts a multipart file for a conversation.
func (h *Handler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errors.ErrMissingFilePart)
		return
	}
	conversationID := c.PostForm("conversation_id")
	if conversationID == "" {
		response.Error(c, errors.ErrMissingConversation)
		return
	}

	f, err := header.Open()
	if err != nil {
		response.Error(c, errors.ErrMissingFilePart.WithCause(err))
		return
	}
	defer f.Close()

	meta, err := h.files.Upload(c.Request.Context(), userID(c), conversationID, header.Filename, f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, UploadResponse{
		Msg:      "File uploaded and parsed successfully",
		FileType: meta.FileType,
		Filename: meta.OriginalFilename,
		FileID:   meta.FileID,
	})
}

// ListConversationFiles lists the files uploaded to a conversation.
func (h *Handler) ListConversationFiles(c *gin.Context) {
	files, err := h.files.ListConversationFiles(c.Request.Context(), userID(c), c.Param("conversation_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, FileListResponse{Files: files})
}

// ListUserFiles lists every file of the caller.
func (h *Handler) ListUserFiles(c *gin.Context) {
	files, err := h.files.ListUserFiles(c.Request.Context(), userID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, FileListResponse{Files: files})
}

// FileContent returns the extracted text of a file.
func (h *Handler) FileContent(c *gin.Context) {
	content, err := h.files.Content(c.Request.Context(), userID(c), c.Param("file_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, content)
}
