package router

import (
	"github.com/labstack/echo/v4"

	"lokapasar/internal/adapter/api/handler"
	"lokapasar/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all conversation-related routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, attachmentHandler *handler.AttachmentHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/v1/conversations")
	chatGroup.Use(authMiddleware.Authenticate) // All conversation endpoints require authentication

	chatGroup.POST("", chatHandler.StartConversation)          // POST /v1/conversations - Start direct conversation
	chatGroup.GET("", chatHandler.ListConversations)           // GET /v1/conversations - List user's conversations
	chatGroup.GET("/:id", chatHandler.GetConversation)         // GET /v1/conversations/:id - Get specific conversation
	chatGroup.PUT("/:id/read", chatHandler.MarkConversationRead) // PUT /v1/conversations/:id/read - Mark as read

	chatGroup.POST("/:id/messages", chatHandler.SendMessage) // POST /v1/conversations/:id/messages - Send message
	chatGroup.GET("/:id/messages", chatHandler.ListMessages) // GET /v1/conversations/:id/messages - Get history

	attachmentGroup := e.Group("/v1/attachments")
	attachmentGroup.Use(authMiddleware.Authenticate)
	attachmentGroup.POST("", attachmentHandler.UploadAttachment) // POST /v1/attachments - Upload chat image
}
