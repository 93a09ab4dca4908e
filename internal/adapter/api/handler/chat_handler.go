package handler

import (
	"github.com/labstack/echo/v4"

	"lokapasar/internal/usecase"
	"lokapasar/pkg/response"
	"lokapasar/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type startConversationRequest struct {
	RecipientID    string `json:"recipient_id" validate:"required"`
	InitialMessage string `json:"initial_message"`
}

type sendMessageRequest struct {
	Type       string `json:"type" validate:"omitempty,oneof=text sellable image"`
	Content    string `json:"content"`
	SellableID string `json:"sellable_id,omitempty"`
	ImageURL   string `json:"image_url,omitempty" validate:"omitempty,url"`
}

// StartConversation opens (or, depending on configuration, reuses) a direct
// conversation with another user.
func (h *ChatHandler) StartConversation(c echo.Context) error {
	var req startConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	conversation, err := h.chatUseCase.StartConversation(c.Request().Context(), userID, usecase.StartConversationInput{
		RecipientID:    req.RecipientID,
		InitialMessage: req.InitialMessage,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, conversation)
}

// ListConversations returns the authenticated user's conversations.
func (h *ChatHandler) ListConversations(c echo.Context) error {
	userID := c.Get("uid").(string)
	params := utils.GetPaginationParams(c)

	conversations, total, err := h.chatUseCase.ListConversations(c.Request().Context(), userID, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, conversations, total, params.Page, params.PageSize)
}

func (h *ChatHandler) GetConversation(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("id")

	conversation, err := h.chatUseCase.GetConversation(c.Request().Context(), userID, conversationID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conversation)
}

// SendMessage is the REST path for sending; the WebSocket channel is the
// preferred one, but both run through the same usecase.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	conversationID := c.Param("id")

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		ConversationID: conversationID,
		Type:           req.Type,
		Content:        req.Content,
		SellableID:     req.SellableID,
		ImageURL:       req.ImageURL,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// ListMessages returns conversation history oldest-first.
func (h *ChatHandler) ListMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("id")
	params := utils.GetPaginationParams(c)

	messages, total, err := h.chatUseCase.ListMessages(c.Request().Context(), userID, conversationID, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, params.Page, params.PageSize)
}

// MarkConversationRead marks every unread message from other participants as
// read by the authenticated user.
func (h *ChatHandler) MarkConversationRead(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("id")

	if err := h.chatUseCase.MarkConversationRead(c.Request().Context(), userID, conversationID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "read"})
}
