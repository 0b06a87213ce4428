// Package router provides the assistant service routing.
package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/moktashif/internal/assistant/handler"
	"github.com/kart-io/moktashif/internal/assistant/metrics"
	"github.com/kart-io/moktashif/pkg/component"
	"github.com/kart-io/moktashif/pkg/middleware"
)

// Options configures route registration.
type Options struct {
	// Identity resolves the caller for every /v1 route.
	Identity gin.HandlerFunc
	// MaxUploadSize caps multipart upload bodies in bytes.
	MaxUploadSize int64
	// Readiness reports backend health for /readyz. Nil always reports ready.
	Readiness func(ctx context.Context) map[string]component.Status
}

// Register registers the assistant routes on engine.
func Register(engine *gin.Engine, h *handler.Handler, opts Options) {
	logger.Info("Registering assistant routes...")

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/readyz", func(c *gin.Context) {
		if opts.Readiness == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		checks := opts.Readiness(c.Request.Context())
		status, code := "ok", http.StatusOK
		for _, st := range checks {
			if !st.Healthy {
				status, code = "unavailable", http.StatusServiceUnavailable
				break
			}
		}
		c.JSON(code, gin.H{"status": status, "checks": checks})
	})
	engine.GET("/metrics", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(metrics.Export()))
	})

	v1 := engine.Group("/v1")
	if opts.Identity != nil {
		v1.Use(opts.Identity)
	}
	{
		convs := v1.Group("/conversations")
		{
			convs.POST("/new", h.CreateConversation)
			convs.GET("", h.ListConversations)
			convs.GET("/search", h.SearchConversations)
			convs.GET("/:id", h.GetConversation)
			convs.DELETE("/:id", h.DeleteConversation)
			convs.PUT("/:id/rename", h.RenameConversation)
			convs.PUT("/:id/messages/:index/edit", h.EditMessage)
			convs.POST("/:id/web_search", h.WebSearch)
		}

		v1.POST("/chat/:id", h.Chat)

		v1.POST("/upload", middleware.BodyLimit(opts.MaxUploadSize), h.Upload)
		v1.GET("/upload/filename/:conversation_id", h.ListConversationFiles)
		v1.GET("/user/files", h.ListUserFiles)
		v1.GET("/file/:file_id", h.FileContent)
	}

	logger.Info("HTTP routes registered")
}
