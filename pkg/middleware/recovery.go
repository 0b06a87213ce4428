package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/moktashif/pkg/errors"
	"github.com/kart-io/moktashif/pkg/utils/response"
)

// Recovery returns a middleware that turns panics into ErrInternal responses.
// When the response has already started (a streamed reply) only the log is written.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			logger.Errorw("Panic recovered",
				"path", c.Request.URL.Path,
				"request_id", RequestID(c),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.Error(c, errors.ErrInternal.WithCause(fmt.Errorf("panic: %v", r)))
		}()
		c.Next()
	}
}
