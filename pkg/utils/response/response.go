// Package response writes JSON responses and errno-based error bodies for gin handlers.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/moktashif/pkg/errors"
)

// HeaderRequestID is the header carrying the request id.
const HeaderRequestID = "X-Request-ID"

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	// Code is the business error code.
	Code int `json:"code"`

	// Message is a human-readable message.
	Message string `json:"message"`

	// RequestID is the request identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// OK writes data with status 200.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created writes data with status 201.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Error maps err to its Errno and aborts the request with the errno's HTTP status.
// Server-side failures are logged with their cause; client errors are not.
func Error(c *gin.Context, err error) {
	e := errors.FromError(err)
	status := e.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Errorw("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"code", e.Code,
			"error", err.Error(),
		)
	}

	c.AbortWithStatusJSON(status, ErrorBody{
		Code:      e.Code,
		Message:   e.MessageEN,
		RequestID: c.Writer.Header().Get(HeaderRequestID),
	})
}
