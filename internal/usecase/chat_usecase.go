package usecase

import (
	"context"
	"log"
	"time"

	"lokapasar/internal/domain/entity"
	"lokapasar/internal/domain/repository"
	"lokapasar/internal/infrastructure/events"
	"lokapasar/internal/infrastructure/presence"
	"lokapasar/internal/infrastructure/ratelimit"
	ws "lokapasar/internal/infrastructure/websocket"
	"lokapasar/pkg/errors"
)

type ChatUseCase struct {
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
	wsManager        *ws.Manager
	tracker          presence.Tracker
	bus              *events.Bus
	rateLimiter      *ratelimit.RateLimiter
	reuseExisting    bool
}

func NewChatUseCase(
	conversationRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	wsManager *ws.Manager,
	tracker presence.Tracker,
	bus *events.Bus,
	reuseExisting bool,
) *ChatUseCase {
	return &ChatUseCase{
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		wsManager:        wsManager,
		tracker:          tracker,
		bus:              bus,
		rateLimiter:      ratelimit.NewRateLimiter(),
		reuseExisting:    reuseExisting,
	}
}

type StartConversationInput struct {
	RecipientID    string
	InitialMessage string
}

type SendMessageInput struct {
	ConversationID string
	Type           string // "text", "sellable", "image"
	Content        string
	SellableID     string
	ImageURL       string
}

type ConversationResponse struct {
	*entity.Conversation
	OtherUser *entity.User `json:"other_user,omitempty"`
}

type MessageResponse struct {
	*entity.Message
	Sender *entity.User `json:"sender,omitempty"`
}

func (uc *ChatUseCase) StartConversation(ctx context.Context, userID string, input StartConversationInput) (*ConversationResponse, error) {
	allowed, _ := uc.rateLimiter.Allow(userID, "start_conversation")
	if !allowed {
		log.Printf("StartConversation Rate Limited: User %s", userID)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before starting another conversation")
	}

	if userID == input.RecipientID {
		log.Printf("StartConversation Error: User %s attempted to start a conversation with themselves", userID)
		return nil, errors.BadRequest("You cannot start a conversation with yourself", nil)
	}

	recipient, err := uc.userRepo.GetByID(ctx, input.RecipientID)
	if err != nil {
		log.Printf("StartConversation Error: Recipient %s not found: %v", input.RecipientID, err)
		return nil, errors.NotFound("Recipient", err)
	}

	var conversation *entity.Conversation

	if uc.reuseExisting {
		existing, err := uc.conversationRepo.FindDirect(ctx, userID, input.RecipientID)
		if err == nil {
			conversation = existing
		} else if !errors.Is(err, "NOT_FOUND") {
			log.Printf("StartConversation Error: Failed to search for existing conversation: %v", err)
			return nil, err
		}
	}

	if conversation == nil {
		conversation = &entity.Conversation{
			Participants:  []string{userID, input.RecipientID},
			LastMessageAt: time.Now(),
		}
		if err := uc.conversationRepo.Create(ctx, conversation); err != nil {
			log.Printf("StartConversation Error: Failed to create conversation: %v", err)
			return nil, err
		}
	}

	if input.InitialMessage != "" {
		if _, err := uc.SendMessage(ctx, userID, SendMessageInput{
			ConversationID: conversation.ID,
			Type:           entity.MessageTypeText,
			Content:        input.InitialMessage,
		}); err != nil {
			log.Printf("StartConversation Error: Failed to send initial message for conversation %s: %v", conversation.ID, err)
			return nil, err
		}
	}

	return &ConversationResponse{
		Conversation: conversation,
		OtherUser:    recipient,
	}, nil
}

func (uc *ChatUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*MessageResponse, error) {
	allowed, _ := uc.rateLimiter.Allow(senderID, "send_message")
	if !allowed {
		log.Printf("SendMessage Rate Limited: User %s", senderID)
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message")
	}

	conversation, err := uc.conversationRepo.GetByID(ctx, input.ConversationID)
	if err != nil {
		log.Printf("SendMessage Error: Conversation %s not found: %v", input.ConversationID, err)
		return nil, err
	}

	// Participantship is re-checked on every send; having joined the room
	// earlier is not proof the sender still belongs here.
	if !conversation.HasParticipant(senderID) {
		log.Printf("SendMessage Error: User %s is not a participant in conversation %s", senderID, input.ConversationID)
		return nil, errors.Forbidden("User is not a participant in this conversation", nil)
	}

	if err := validatePayload(&input); err != nil {
		return nil, err
	}

	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		log.Printf("SendMessage Error: Sender %s not found: %v", senderID, err)
		return nil, errors.NotFound("Sender", err)
	}

	now := time.Now()
	message := &entity.Message{
		ConversationID: input.ConversationID,
		SenderID:       senderID,
		Type:           input.Type,
		Content:        input.Content,
		SellableID:     input.SellableID,
		ImageURL:       input.ImageURL,
		Status:         entity.MessageStatusSent,
		ReadBy:         []entity.ReadReceipt{{UserID: senderID, ReadAt: now}},
		CreatedAt:      now,
	}

	// Advisory only; the authoritative read state is ReadBy.
	if uc.wsManager.RoomHasOtherMembers(input.ConversationID, senderID) {
		message.Status = entity.MessageStatusDelivered
	}

	if err := uc.conversationRepo.AppendMessage(ctx, conversation, message); err != nil {
		log.Printf("SendMessage Error: Failed to append message to conversation %s: %v", input.ConversationID, err)
		return nil, err
	}

	// The full message goes to the conversation room, sender included, so all
	// of the sender's devices stay consistent.
	uc.wsManager.BroadcastToRoom(input.ConversationID, ws.NewEvent(ws.EventNewMessage, &MessageResponse{
		Message: message,
		Sender:  sender,
	}))

	preview := conversation.LastMessage
	for _, participantID := range conversation.Participants {
		if participantID == senderID {
			continue
		}

		if uc.tracker.IsOnline(participantID) {
			// Connected but maybe not viewing this conversation: a lightweight
			// nudge to the personal room lets the client show a badge.
			uc.wsManager.SendToUser(participantID, ws.NewEvent(ws.EventMessageNotification, ws.MessageNotificationData{
				ConversationID: input.ConversationID,
				SenderID:       senderID,
				SenderName:     sender.Username,
				Preview:        preview,
			}))
		} else {
			// Offline participants catch up through persisted notifications
			// and history on their next login.
			uc.bus.Publish(events.DomainEvent{
				Kind:      entity.KindMessageReceived,
				Recipient: participantID,
				Payload: entity.MessagePayload{
					ConversationID: input.ConversationID,
					SenderID:       senderID,
					SenderName:     sender.Username,
					Preview:        preview,
				},
			})
		}
	}

	return &MessageResponse{
		Message: message,
		Sender:  sender,
	}, nil
}

func validatePayload(input *SendMessageInput) error {
	if input.Type == "" {
		input.Type = entity.MessageTypeText
	}

	switch input.Type {
	case entity.MessageTypeText:
		if input.Content == "" {
			return errors.BadRequest("Text messages require content", nil)
		}
	case entity.MessageTypeSellable:
		if input.SellableID == "" {
			return errors.BadRequest("Sellable messages require sellable_id", nil)
		}
	case entity.MessageTypeImage:
		if input.ImageURL == "" {
			return errors.BadRequest("Image messages require image_url", nil)
		}
	default:
		return errors.BadRequest("Unknown message type", nil)
	}
	return nil
}

// StartCleanup starts the rate limiter's bucket cleanup routine; it stops
// when ctx is cancelled.
func (uc *ChatUseCase) StartCleanup(ctx context.Context) {
	uc.rateLimiter.StartCleanupRoutine(ctx)
}

// Authorize checks that userID is a listed participant of the conversation.
func (uc *ChatUseCase) Authorize(ctx context.Context, conversationID, userID string) error {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(userID) {
		return errors.Forbidden("User is not a participant in this conversation", nil)
	}
	return nil
}

// MarkConversationRead appends read receipts for every unread message not
// authored by the reader, then tells the rest of the room. Idempotent: a
// second call finds nothing to mark and broadcasts nothing.
func (uc *ChatUseCase) MarkConversationRead(ctx context.Context, userID, conversationID string) error {
	if err := uc.Authorize(ctx, conversationID, userID); err != nil {
		log.Printf("MarkConversationRead Error: User %s rejected for conversation %s: %v", userID, conversationID, err)
		return err
	}

	readAt := time.Now()
	marked, err := uc.conversationRepo.MarkMessagesRead(ctx, conversationID, userID, readAt)
	if err != nil {
		log.Printf("MarkConversationRead Error: Failed to mark messages read in conversation %s: %v", conversationID, err)
		return err
	}

	if marked > 0 {
		uc.wsManager.BroadcastToRoomExcept(conversationID, userID, ws.NewEvent(ws.EventMessagesRead, ws.MessagesReadData{
			ConversationID: conversationID,
			ReaderID:       userID,
			ReadAt:         readAt.UTC().Format(time.RFC3339),
		}))
	}

	return nil
}

// Typing relays an ephemeral typing indicator to the rest of the room.
// Nothing is persisted and delivery is best-effort.
func (uc *ChatUseCase) Typing(ctx context.Context, userID, conversationID string, typing bool) {
	allowed, _ := uc.rateLimiter.Allow(userID, "typing")
	if !allowed {
		return // Silently ignore excessive typing events
	}

	if err := uc.Authorize(ctx, conversationID, userID); err != nil {
		log.Printf("Typing Error: User %s rejected for conversation %s: %v", userID, conversationID, err)
		return
	}

	eventType := ws.EventUserTyping
	if !typing {
		eventType = ws.EventUserStoppedTyping
	}

	uc.wsManager.BroadcastToRoomExcept(conversationID, userID, ws.NewEvent(eventType, ws.TypingData{
		ConversationID: conversationID,
		UserID:         userID,
	}))
}

func (uc *ChatUseCase) ListConversations(ctx context.Context, userID string, limit, offset int) ([]*ConversationResponse, int64, error) {
	conversations, total, err := uc.conversationRepo.ListByParticipant(ctx, userID, limit, offset)
	if err != nil {
		log.Printf("ListConversations Error: Failed to list conversations for user %s: %v", userID, err)
		return nil, 0, err
	}

	responses := make([]*ConversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		resp := &ConversationResponse{Conversation: conversation}
		for _, participantID := range conversation.Participants {
			if participantID != userID {
				if otherUser, err := uc.userRepo.GetByID(ctx, participantID); err == nil {
					resp.OtherUser = otherUser
				}
				break
			}
		}
		responses = append(responses, resp)
	}

	return responses, total, nil
}

func (uc *ChatUseCase) GetConversation(ctx context.Context, userID, conversationID string) (*ConversationResponse, error) {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, errors.Forbidden("User is not a participant in this conversation", nil)
	}

	resp := &ConversationResponse{Conversation: conversation}
	for _, participantID := range conversation.Participants {
		if participantID != userID {
			if otherUser, err := uc.userRepo.GetByID(ctx, participantID); err == nil {
				resp.OtherUser = otherUser
			}
			break
		}
	}
	return resp, nil
}

// ListMessages returns the conversation history oldest-first; clients reverse
// for display if they want newest on top.
func (uc *ChatUseCase) ListMessages(ctx context.Context, userID, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	if err := uc.Authorize(ctx, conversationID, userID); err != nil {
		return nil, 0, err
	}

	return uc.conversationRepo.ListMessages(ctx, conversationID, limit, offset)
}

// chatChannel adapts the usecase to the channel's ChatService contract.
type chatChannel struct {
	uc *ChatUseCase
}

// NewChatChannel exposes the usecase to the websocket manager.
func NewChatChannel(uc *ChatUseCase) ws.ChatService {
	return &chatChannel{uc: uc}
}

func (c *chatChannel) Authorize(ctx context.Context, conversationID, userID string) error {
	return c.uc.Authorize(ctx, conversationID, userID)
}

func (c *chatChannel) SendMessage(ctx context.Context, senderID string, data ws.SendMessageData) error {
	_, err := c.uc.SendMessage(ctx, senderID, SendMessageInput{
		ConversationID: data.ConversationID,
		Type:           data.Type,
		Content:        data.Content,
		SellableID:     data.SellableID,
		ImageURL:       data.ImageURL,
	})
	return err
}

func (c *chatChannel) MarkConversationRead(ctx context.Context, userID, conversationID string) error {
	return c.uc.MarkConversationRead(ctx, userID, conversationID)
}

func (c *chatChannel) Typing(ctx context.Context, userID, conversationID string, typing bool) {
	c.uc.Typing(ctx, userID, conversationID, typing)
}
