package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"lokapasar/internal/infrastructure/presence"
	apperrors "lokapasar/pkg/errors"
	"lokapasar/pkg/logger"
)

// Manager is the hub for all live connections. It tracks which connections
// belong to which user (the per-identity personal room) and which are joined
// to which conversation room, and relays events between them.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // userID -> live connections
	rooms   map[string]map[*Client]struct{} // conversationID -> joined connections

	Register   chan *Client
	Unregister chan *Client

	tracker presence.Tracker
	chat    ChatService
}

func NewManager(tracker presence.Tracker) *Manager {
	return &Manager{
		clients:    make(map[string]map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		tracker:    tracker,
	}
}

// SetChatService wires the domain layer in after construction; the usecase
// needs the manager first for its own fan-out.
func (m *Manager) SetChatService(chat ChatService) {
	m.chat = chat
}

// Run processes connection lifecycle events until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.addClient(client)

			case client := <-m.Unregister:
				m.removeClient(client)

			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) addClient(client *Client) {
	m.mu.Lock()
	conns, ok := m.clients[client.UserID]
	if !ok {
		conns = make(map[*Client]struct{})
		m.clients[client.UserID] = conns
	}
	firstConnection := len(conns) == 0
	conns[client] = struct{}{}
	m.mu.Unlock()

	m.tracker.Register(client.UserID, client.ID)
	logger.Debug("WebSocket: client %s registered for user %s", client.ID, client.UserID)

	// Presence is broadcast only on the identity's first connection; a second
	// device coming up is not a state change.
	if firstConnection {
		m.broadcastAllExcept(client.UserID, NewEvent(EventUserOnline, PresenceData{
			UserID: client.UserID,
		}))
	}
}

func (m *Manager) removeClient(client *Client) {
	m.mu.Lock()
	if conns, ok := m.clients[client.UserID]; ok {
		if _, registered := conns[client]; registered {
			delete(conns, client)
			close(client.Send)
		}
		if len(conns) == 0 {
			delete(m.clients, client.UserID)
		}
	}
	for conversationID, members := range m.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(m.rooms, conversationID)
		}
	}
	m.mu.Unlock()

	wentOffline := m.tracker.Unregister(client.UserID, client.ID)
	logger.Debug("WebSocket: client %s unregistered for user %s", client.ID, client.UserID)

	if wentOffline {
		m.broadcastAllExcept(client.UserID, NewEvent(EventUserOffline, PresenceData{
			UserID:   client.UserID,
			LastSeen: time.Now().UTC().Format(time.RFC3339),
		}))
	}
}

// JoinRoom adds a connection to a conversation room. Authorization has
// already happened by the time this is called.
func (m *Manager) JoinRoom(conversationID string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[conversationID]
	if !ok {
		members = make(map[*Client]struct{})
		m.rooms[conversationID] = members
	}
	members[client] = struct{}{}
}

func (m *Manager) LeaveRoom(conversationID string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if members, ok := m.rooms[conversationID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(m.rooms, conversationID)
		}
	}
}

// RoomHasOtherMembers reports whether anyone besides userID is currently in
// the conversation room; used to advise the message delivery status.
func (m *Manager) RoomHasOtherMembers(conversationID, userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for client := range m.rooms[conversationID] {
		if client.UserID != userID {
			return true
		}
	}
	return false
}

// BroadcastToRoom delivers an event to every connection in a conversation
// room, the originator included (it keeps the sender's other devices in sync).
func (m *Manager) BroadcastToRoom(conversationID string, event OutEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("WebSocket: failed to marshal %s event: %v", event.Type, err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for client := range m.rooms[conversationID] {
		m.trySend(client, payload)
	}
}

// BroadcastToRoomExcept delivers to the room while skipping every connection
// of one user.
func (m *Manager) BroadcastToRoomExcept(conversationID, exceptUserID string, event OutEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("WebSocket: failed to marshal %s event: %v", event.Type, err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for client := range m.rooms[conversationID] {
		if client.UserID == exceptUserID {
			continue
		}
		m.trySend(client, payload)
	}
}

// SendToUser delivers an event to every live connection of one user (the
// personal room).
func (m *Manager) SendToUser(userID string, event OutEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("WebSocket: failed to marshal %s event: %v", event.Type, err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for client := range m.clients[userID] {
		m.trySend(client, payload)
	}
}

func (m *Manager) broadcastAllExcept(exceptUserID string, event OutEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("WebSocket: failed to marshal %s event: %v", event.Type, err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for userID, conns := range m.clients {
		if userID == exceptUserID {
			continue
		}
		for client := range conns {
			m.trySend(client, payload)
		}
	}
}

// trySend never blocks: a connection whose buffer is full simply misses the
// event. The read pump and the presence sweep reap connections that are
// actually dead.
func (m *Manager) trySend(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		logger.Warn("WebSocket: send buffer full for user %s, dropping event", client.UserID)
	}
}

// SendError reports a rejected operation back to the originating connection
// only. Channel-level failures never terminate the connection.
func (m *Manager) SendError(client *Client, err error) {
	data := ErrorData{Message: "Operation failed"}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		data.Code = appErr.Code
		data.Message = appErr.Message
	} else if err != nil {
		data.Message = err.Error()
	}

	payload, marshalErr := json.Marshal(NewEvent(EventError, data))
	if marshalErr != nil {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	m.trySend(client, payload)
}
