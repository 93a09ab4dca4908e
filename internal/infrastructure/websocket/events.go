package websocket

import (
	"context"
	"encoding/json"
	"time"
)

// Client-to-server event types
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventMarkRead          = "mark_read"
	EventPing              = "ping"
)

// Server-to-client event types
const (
	EventNewMessage          = "new_message"
	EventMessageNotification = "message_notification"
	EventUserTyping          = "user_typing"
	EventUserStoppedTyping   = "user_stopped_typing"
	EventMessagesRead        = "messages_read"
	EventUserOnline          = "user_online"
	EventUserOffline         = "user_offline"
	EventNotification        = "notification"
	EventError               = "error"
	EventPong                = "pong"
)

// Event is the inbound envelope. Data stays raw until the type switch picks
// the payload shape.
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// OutEvent is the outbound envelope.
type OutEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewEvent wraps a payload in the outbound envelope.
func NewEvent(eventType string, data interface{}) OutEvent {
	return OutEvent{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

type JoinConversationData struct {
	ConversationID string `json:"conversation_id"`
}

type SendMessageData struct {
	ConversationID string `json:"conversation_id"`
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	SellableID     string `json:"sellable_id,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
}

type MarkReadData struct {
	ConversationID string `json:"conversation_id"`
}

type TypingData struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
}

type MessageNotificationData struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name,omitempty"`
	Preview        string `json:"preview,omitempty"`
}

type MessagesReadData struct {
	ConversationID string `json:"conversation_id"`
	ReaderID       string `json:"reader_id"`
	ReadAt         string `json:"read_at"`
}

type PresenceData struct {
	UserID   string `json:"user_id"`
	LastSeen string `json:"last_seen,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ChatService is the domain surface the channel delegates to. Send and
// mark-read persist first and then fan out through the Manager, so a caller
// only ever sees an error when nothing was shown as sent.
type ChatService interface {
	// Authorize returns a FORBIDDEN or NOT_FOUND error unless userID is a
	// participant of the conversation.
	Authorize(ctx context.Context, conversationID, userID string) error
	SendMessage(ctx context.Context, senderID string, data SendMessageData) error
	MarkConversationRead(ctx context.Context, userID, conversationID string) error
	Typing(ctx context.Context, userID, conversationID string, typing bool)
}
