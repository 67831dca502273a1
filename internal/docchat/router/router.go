// Package router wires the document chat routes onto a gin engine.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/handler"
)

// Register registers the document chat routes.
func Register(engine *gin.Engine, h *handler.DocChatHandler) {
	engine.GET("/health", h.Health)

	engine.POST("/upload", h.Upload)
	engine.POST("/chat", h.Chat)

	engine.GET("/documents", h.DocumentStats)
	engine.DELETE("/documents", h.ClearAllDocuments)

	sessions := engine.Group("/sessions")
	{
		sessions.GET("/:id/history", h.History)
		sessions.DELETE("/:id/history", h.ClearHistory)
	}

	logger.Info("HTTP routes registered")
}
