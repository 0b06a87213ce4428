package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kart-io/moktashif/pkg/utils/response"
)

// RequestIDMiddleware reuses an inbound X-Request-ID or generates a UUID, echoes it
// in the response header and stores it in both the gin and request contexts.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(response.HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		c.Header(response.HeaderRequestID, id)
		c.Set(ginRequestIDKey, id)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}
