package websocket

import (
	"context"
	"encoding/json"
	"log"

	"lokapasar/pkg/errors"
)

// HandleClientMessage processes one inbound event. It runs on the
// connection's read pump, so events from a single connection are handled
// strictly in arrival order.
func (m *Manager) HandleClientMessage(client *Client, raw []byte) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Printf("WebSocket: failed to unmarshal event from user %s: %v", client.UserID, err)
		m.SendError(client, errors.BadRequest("Invalid event format", err))
		return
	}

	ctx := context.Background()

	switch event.Type {
	case EventPing:
		m.handlePing(client)

	case EventJoinConversation:
		m.handleJoin(ctx, client, event.Data)

	case EventLeaveConversation:
		m.handleLeave(client, event.Data)

	case EventSendMessage:
		m.handleSendMessage(ctx, client, event.Data)

	case EventTypingStart:
		m.handleTyping(ctx, client, event.Data, true)

	case EventTypingStop:
		m.handleTyping(ctx, client, event.Data, false)

	case EventMarkRead:
		m.handleMarkRead(ctx, client, event.Data)

	default:
		log.Printf("WebSocket: unknown event type '%s' from user %s", event.Type, client.UserID)
		m.SendError(client, errors.BadRequest("Unknown event type", nil))
	}
}

func (m *Manager) handlePing(client *Client) {
	payload, err := json.Marshal(NewEvent(EventPong, map[string]string{"status": "alive"}))
	if err != nil {
		return
	}
	m.mu.RLock()
	m.trySend(client, payload)
	m.mu.RUnlock()
}

func (m *Manager) handleJoin(ctx context.Context, client *Client, raw json.RawMessage) {
	var data JoinConversationData
	if err := json.Unmarshal(raw, &data); err != nil || data.ConversationID == "" {
		m.SendError(client, errors.BadRequest("Invalid join payload", err))
		return
	}

	// Membership is checked against the store on every join, not trusted from
	// the client. An unauthorized join is rejected without dropping the socket.
	if err := m.chat.Authorize(ctx, data.ConversationID, client.UserID); err != nil {
		log.Printf("WebSocket: user %s rejected from conversation %s: %v", client.UserID, data.ConversationID, err)
		m.SendError(client, err)
		return
	}

	m.JoinRoom(data.ConversationID, client)
	log.Printf("WebSocket: user %s joined conversation %s", client.UserID, data.ConversationID)
}

func (m *Manager) handleLeave(client *Client, raw json.RawMessage) {
	var data JoinConversationData
	if err := json.Unmarshal(raw, &data); err != nil || data.ConversationID == "" {
		m.SendError(client, errors.BadRequest("Invalid leave payload", err))
		return
	}

	// Leaving only reduces what the connection receives, no check needed.
	m.LeaveRoom(data.ConversationID, client)
}

func (m *Manager) handleSendMessage(ctx context.Context, client *Client, raw json.RawMessage) {
	var data SendMessageData
	if err := json.Unmarshal(raw, &data); err != nil {
		m.SendError(client, errors.BadRequest("Invalid message payload", err))
		return
	}
	if data.ConversationID == "" {
		m.SendError(client, errors.BadRequest("Missing conversation_id", nil))
		return
	}

	if err := m.chat.SendMessage(ctx, client.UserID, data); err != nil {
		log.Printf("WebSocket: send from user %s to conversation %s failed: %v", client.UserID, data.ConversationID, err)
		m.SendError(client, err)
	}
}

func (m *Manager) handleTyping(ctx context.Context, client *Client, raw json.RawMessage, typing bool) {
	var data TypingData
	if err := json.Unmarshal(raw, &data); err != nil || data.ConversationID == "" {
		m.SendError(client, errors.BadRequest("Invalid typing payload", err))
		return
	}

	m.chat.Typing(ctx, client.UserID, data.ConversationID, typing)
}

func (m *Manager) handleMarkRead(ctx context.Context, client *Client, raw json.RawMessage) {
	var data MarkReadData
	if err := json.Unmarshal(raw, &data); err != nil || data.ConversationID == "" {
		m.SendError(client, errors.BadRequest("Invalid mark_read payload", err))
		return
	}

	if err := m.chat.MarkConversationRead(ctx, client.UserID, data.ConversationID); err != nil {
		log.Printf("WebSocket: mark_read from user %s for conversation %s failed: %v", client.UserID, data.ConversationID, err)
		m.SendError(client, err)
	}
}
