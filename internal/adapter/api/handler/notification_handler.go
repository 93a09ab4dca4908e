package handler

import (
	"github.com/labstack/echo/v4"

	"lokapasar/internal/usecase"
	"lokapasar/pkg/response"
	"lokapasar/pkg/utils"
)

type NotificationHandler struct {
	notificationUseCase *usecase.NotificationUseCase
}

func NewNotificationHandler(notificationUseCase *usecase.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
	}
}

// ListNotifications returns the authenticated user's notifications, newest
// first. Pass ?unread=true to filter to unread only.
func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c)
	unreadOnly := c.QueryParam("unread") == "true"

	notifications, total, err := h.notificationUseCase.List(c.Request().Context(), userID, unreadOnly, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, notifications, total, params.Page, params.PageSize)
}

// UnreadCount returns the badge count.
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	userID := c.Get("uid").(string)

	count, err := h.notificationUseCase.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int64{"unread": count})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	userID := c.Get("uid").(string)
	notificationID := c.Param("id")

	notification, err := h.notificationUseCase.MarkRead(c.Request().Context(), userID, notificationID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, notification)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	userID := c.Get("uid").(string)

	marked, err := h.notificationUseCase.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]int{"marked": marked})
}

func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	userID := c.Get("uid").(string)
	notificationID := c.Param("id")

	if err := h.notificationUseCase.Delete(c.Request().Context(), userID, notificationID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "deleted"})
}
