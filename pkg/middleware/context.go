// Package middleware provides gin middleware for request ids, identity,
// access logging, panic recovery and CORS.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

type (
	requestIDKey struct{}
	userIDKey    struct{}
)

// gin context keys mirroring the request context values.
const (
	ginRequestIDKey = "request_id"
	ginUserIDKey    = "user_id"
)

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFrom returns the authenticated user id or "".
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// UserID returns the user id stored by Identity.
func UserID(c *gin.Context) string {
	return c.GetString(ginUserIDKey)
}

// RequestID returns the request id stored by RequestIDMiddleware.
func RequestID(c *gin.Context) string {
	return c.GetString(ginRequestIDKey)
}
