package websocket

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"lokapasar/internal/infrastructure/presence"
	"lokapasar/pkg/errors"
)

type stubChatService struct {
	authorizeErr error
	sendErr      error
	sent         []SendMessageData
	marked       []string
	typing       []bool
}

func (s *stubChatService) Authorize(ctx context.Context, conversationID, userID string) error {
	return s.authorizeErr
}

func (s *stubChatService) SendMessage(ctx context.Context, senderID string, data SendMessageData) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, data)
	return nil
}

func (s *stubChatService) MarkConversationRead(ctx context.Context, userID, conversationID string) error {
	s.marked = append(s.marked, conversationID)
	return nil
}

func (s *stubChatService) Typing(ctx context.Context, userID, conversationID string, typing bool) {
	s.typing = append(s.typing, typing)
}

func newTestManager(chat ChatService) *Manager {
	m := NewManager(presence.NewMemoryTracker())
	if chat != nil {
		m.SetChatService(chat)
	}
	return m
}

func newTestClient(id, userID string) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Send:   make(chan []byte, 16),
	}
}

func receiveEvent(t *testing.T, client *Client) OutEvent {
	t.Helper()
	select {
	case payload := <-client.Send:
		var event OutEvent
		assert.NoError(t, json.Unmarshal(payload, &event))
		return event
	default:
		t.Fatal("expected an event on the client's send channel")
		return OutEvent{}
	}
}

func drain(client *Client) {
	for {
		select {
		case <-client.Send:
		default:
			return
		}
	}
}

func TestAddClientTracksPresence(t *testing.T) {
	m := newTestManager(nil)
	client := newTestClient("conn-1", "user-1")

	m.addClient(client)

	assert.True(t, m.tracker.IsOnline("user-1"))

	m.removeClient(client)
	assert.False(t, m.tracker.IsOnline("user-1"))
}

func TestPresenceBroadcastOnlyOnFirstAndLastConnection(t *testing.T) {
	m := newTestManager(nil)
	observer := newTestClient("conn-obs", "observer")
	m.addClient(observer)
	drain(observer)

	first := newTestClient("conn-1", "user-1")
	second := newTestClient("conn-2", "user-1")

	m.addClient(first)
	event := receiveEvent(t, observer)
	assert.Equal(t, EventUserOnline, event.Type)

	// A second device is not a presence change.
	m.addClient(second)
	assert.Empty(t, observer.Send)

	m.removeClient(first)
	assert.Empty(t, observer.Send)

	m.removeClient(second)
	event = receiveEvent(t, observer)
	assert.Equal(t, EventUserOffline, event.Type)
}

func TestBroadcastToRoomIncludesSender(t *testing.T) {
	m := newTestManager(nil)
	sender := newTestClient("conn-1", "user-1")
	senderPhone := newTestClient("conn-2", "user-1")
	other := newTestClient("conn-3", "user-2")
	outsider := newTestClient("conn-4", "user-3")

	for _, c := range []*Client{sender, senderPhone, other, outsider} {
		m.addClient(c)
	}
	for _, c := range []*Client{sender, senderPhone, other, outsider} {
		drain(c)
	}
	m.JoinRoom("conv-1", sender)
	m.JoinRoom("conv-1", senderPhone)
	m.JoinRoom("conv-1", other)

	m.BroadcastToRoom("conv-1", NewEvent(EventNewMessage, map[string]string{"id": "msg-1"}))

	for _, c := range []*Client{sender, senderPhone, other} {
		event := receiveEvent(t, c)
		assert.Equal(t, EventNewMessage, event.Type)
	}
	assert.Empty(t, outsider.Send)
}

func TestBroadcastToRoomExceptSkipsAllOfUsersConnections(t *testing.T) {
	m := newTestManager(nil)
	typist := newTestClient("conn-1", "user-1")
	typistTablet := newTestClient("conn-2", "user-1")
	other := newTestClient("conn-3", "user-2")

	for _, c := range []*Client{typist, typistTablet, other} {
		m.addClient(c)
		m.JoinRoom("conv-1", c)
	}
	for _, c := range []*Client{typist, typistTablet, other} {
		drain(c)
	}

	m.BroadcastToRoomExcept("conv-1", "user-1", NewEvent(EventUserTyping, TypingData{ConversationID: "conv-1", UserID: "user-1"}))

	assert.Empty(t, typist.Send)
	assert.Empty(t, typistTablet.Send)
	event := receiveEvent(t, other)
	assert.Equal(t, EventUserTyping, event.Type)
}

func TestSendToUserReachesEveryDevice(t *testing.T) {
	m := newTestManager(nil)
	laptop := newTestClient("conn-1", "user-1")
	phone := newTestClient("conn-2", "user-1")
	m.addClient(laptop)
	m.addClient(phone)
	drain(laptop)
	drain(phone)

	m.SendToUser("user-1", NewEvent(EventNotification, map[string]string{"id": "ntf-1"}))

	assert.Equal(t, EventNotification, receiveEvent(t, laptop).Type)
	assert.Equal(t, EventNotification, receiveEvent(t, phone).Type)
}

func TestSendToUserWithNoConnectionsIsNoop(t *testing.T) {
	m := newTestManager(nil)
	m.SendToUser("ghost", NewEvent(EventNotification, nil))
}

func TestRoomHasOtherMembers(t *testing.T) {
	m := newTestManager(nil)
	a := newTestClient("conn-1", "user-1")
	b := newTestClient("conn-2", "user-2")
	m.addClient(a)
	m.addClient(b)
	m.JoinRoom("conv-1", a)

	assert.False(t, m.RoomHasOtherMembers("conv-1", "user-1"))

	m.JoinRoom("conv-1", b)
	assert.True(t, m.RoomHasOtherMembers("conv-1", "user-1"))
	assert.True(t, m.RoomHasOtherMembers("conv-1", "user-2"))
}

func TestRemoveClientLeavesItsRooms(t *testing.T) {
	m := newTestManager(nil)
	a := newTestClient("conn-1", "user-1")
	b := newTestClient("conn-2", "user-2")
	m.addClient(a)
	m.addClient(b)
	m.JoinRoom("conv-1", a)
	m.JoinRoom("conv-1", b)

	m.removeClient(b)

	assert.False(t, m.RoomHasOtherMembers("conv-1", "user-1"))
}

func TestFullSendBufferDropsInsteadOfBlocking(t *testing.T) {
	m := newTestManager(nil)
	slow := &Client{ID: "conn-1", UserID: "user-1", Send: make(chan []byte, 1)}
	m.addClient(slow)
	drain(slow)
	m.JoinRoom("conv-1", slow)

	m.BroadcastToRoom("conv-1", NewEvent(EventNewMessage, map[string]string{"id": "msg-1"}))
	m.BroadcastToRoom("conv-1", NewEvent(EventNewMessage, map[string]string{"id": "msg-2"}))

	assert.Len(t, slow.Send, 1, "second event should be dropped, not block the hub")
}

func TestHandleClientMessagePing(t *testing.T) {
	m := newTestManager(&stubChatService{})
	client := newTestClient("conn-1", "user-1")
	m.addClient(client)
	drain(client)

	m.HandleClientMessage(client, []byte(`{"type":"ping"}`))

	assert.Equal(t, EventPong, receiveEvent(t, client).Type)
}

func TestHandleClientMessageJoinChecksMembership(t *testing.T) {
	chat := &stubChatService{authorizeErr: errors.Forbidden("User is not a participant in this conversation", nil)}
	m := newTestManager(chat)
	client := newTestClient("conn-1", "user-1")
	m.addClient(client)
	drain(client)

	m.HandleClientMessage(client, []byte(`{"type":"join_conversation","data":{"conversation_id":"conv-1"}}`))

	event := receiveEvent(t, client)
	assert.Equal(t, EventError, event.Type)
	assert.False(t, m.RoomHasOtherMembers("conv-1", "nobody"))

	chat.authorizeErr = nil
	m.HandleClientMessage(client, []byte(`{"type":"join_conversation","data":{"conversation_id":"conv-1"}}`))
	assert.True(t, m.RoomHasOtherMembers("conv-1", "someone-else"))
}

func TestHandleClientMessageSendDelegates(t *testing.T) {
	chat := &stubChatService{}
	m := newTestManager(chat)
	client := newTestClient("conn-1", "user-1")
	m.addClient(client)
	drain(client)

	m.HandleClientMessage(client, []byte(`{"type":"send_message","data":{"conversation_id":"conv-1","type":"text","content":"halo"}}`))

	assert.Len(t, chat.sent, 1)
	assert.Equal(t, "halo", chat.sent[0].Content)
	assert.Empty(t, client.Send, "successful send produces no direct reply; the room broadcast carries the message")
}

func TestHandleClientMessageErrorsGoOnlyToOrigin(t *testing.T) {
	chat := &stubChatService{sendErr: errors.BadRequest("Text messages require content", nil)}
	m := newTestManager(chat)
	client := newTestClient("conn-1", "user-1")
	other := newTestClient("conn-2", "user-2")
	m.addClient(client)
	m.addClient(other)
	drain(client)
	drain(other)

	m.HandleClientMessage(client, []byte(`{"type":"send_message","data":{"conversation_id":"conv-1","type":"text"}}`))

	event := receiveEvent(t, client)
	assert.Equal(t, EventError, event.Type)
	assert.Empty(t, other.Send)
}

func TestHandleClientMessageMalformedAndUnknown(t *testing.T) {
	m := newTestManager(&stubChatService{})
	client := newTestClient("conn-1", "user-1")
	m.addClient(client)
	drain(client)

	m.HandleClientMessage(client, []byte(`{not json`))
	assert.Equal(t, EventError, receiveEvent(t, client).Type)

	m.HandleClientMessage(client, []byte(`{"type":"self_destruct"}`))
	assert.Equal(t, EventError, receiveEvent(t, client).Type)
}

func TestHandleClientMessageMarkReadDelegates(t *testing.T) {
	chat := &stubChatService{}
	m := newTestManager(chat)
	client := newTestClient("conn-1", "user-1")
	m.addClient(client)
	drain(client)

	m.HandleClientMessage(client, []byte(`{"type":"mark_read","data":{"conversation_id":"conv-1"}}`))

	assert.Equal(t, []string{"conv-1"}, chat.marked)
}

func TestHandleClientMessageTyping(t *testing.T) {
	chat := &stubChatService{}
	m := newTestManager(chat)
	client := newTestClient("conn-1", "user-1")
	m.addClient(client)
	drain(client)

	m.HandleClientMessage(client, []byte(`{"type":"typing_start","data":{"conversation_id":"conv-1"}}`))
	m.HandleClientMessage(client, []byte(`{"type":"typing_stop","data":{"conversation_id":"conv-1"}}`))

	assert.Equal(t, []bool{true, false}, chat.typing)
}
