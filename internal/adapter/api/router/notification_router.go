package router

import (
	"github.com/labstack/echo/v4"

	"lokapasar/internal/adapter/api/handler"
	"lokapasar/internal/adapter/api/middleware"
)

// SetupNotificationRouter sets up the notification inbox routes
func SetupNotificationRouter(e *echo.Echo, notificationHandler *handler.NotificationHandler, authMiddleware *middleware.AuthMiddleware) {
	notificationGroup := e.Group("/v1/notifications")
	notificationGroup.Use(authMiddleware.Authenticate)

	notificationGroup.GET("", notificationHandler.ListNotifications)      // GET /v1/notifications?unread=true
	notificationGroup.GET("/unread-count", notificationHandler.UnreadCount) // GET /v1/notifications/unread-count
	notificationGroup.PUT("/read-all", notificationHandler.MarkAllRead)   // PUT /v1/notifications/read-all
	notificationGroup.PUT("/:id/read", notificationHandler.MarkRead)      // PUT /v1/notifications/:id/read
	notificationGroup.DELETE("/:id", notificationHandler.DeleteNotification) // DELETE /v1/notifications/:id
}
