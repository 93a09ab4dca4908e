package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"lokapasar/internal/domain/entity"
	"lokapasar/internal/infrastructure/events"
	"lokapasar/internal/infrastructure/presence"
	ws "lokapasar/internal/infrastructure/websocket"
	"lokapasar/pkg/errors"
)

type stubConversationRepo struct {
	conversations map[string]*entity.Conversation
	messages      map[string][]*entity.Message
	createCalls   int
}

func newStubConversationRepo() *stubConversationRepo {
	return &stubConversationRepo{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string][]*entity.Message),
	}
}

func (r *stubConversationRepo) Create(ctx context.Context, conversation *entity.Conversation) error {
	r.createCalls++
	conversation.ID = uuid.New().String()
	conversation.CreatedAt = time.Now()
	conversation.UpdatedAt = time.Now()
	r.conversations[conversation.ID] = conversation
	return nil
}

func (r *stubConversationRepo) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	conversation, ok := r.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	return conversation, nil
}

func (r *stubConversationRepo) FindDirect(ctx context.Context, a, b string) (*entity.Conversation, error) {
	for _, conversation := range r.conversations {
		if len(conversation.Participants) == 2 &&
			conversation.HasParticipant(a) && conversation.HasParticipant(b) {
			return conversation, nil
		}
	}
	return nil, errors.NotFound("Conversation", nil)
}

func (r *stubConversationRepo) ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error) {
	var result []*entity.Conversation
	for _, conversation := range r.conversations {
		if conversation.HasParticipant(userID) {
			result = append(result, conversation)
		}
	}
	return result, int64(len(result)), nil
}

func (r *stubConversationRepo) Update(ctx context.Context, conversation *entity.Conversation) error {
	r.conversations[conversation.ID] = conversation
	return nil
}

func (r *stubConversationRepo) AppendMessage(ctx context.Context, conversation *entity.Conversation, message *entity.Message) error {
	message.ID = uuid.New().String()
	r.messages[conversation.ID] = append(r.messages[conversation.ID], message)

	conversation.LastMessageID = message.ID
	conversation.LastMessage = message.Content
	conversation.LastMessageAt = message.CreatedAt
	conversation.UpdatedAt = message.CreatedAt
	return nil
}

func (r *stubConversationRepo) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	msgs := r.messages[conversationID]
	return msgs, int64(len(msgs)), nil
}

func (r *stubConversationRepo) GetMessageByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	for _, message := range r.messages[conversationID] {
		if message.ID == messageID {
			return message, nil
		}
	}
	return nil, errors.NotFound("Message", nil)
}

func (r *stubConversationRepo) UpdateMessage(ctx context.Context, conversationID string, message *entity.Message) error {
	for i, existing := range r.messages[conversationID] {
		if existing.ID == message.ID {
			r.messages[conversationID][i] = message
			return nil
		}
	}
	return errors.NotFound("Message", nil)
}

func (r *stubConversationRepo) MarkMessagesRead(ctx context.Context, conversationID, readerID string, readAt time.Time) (int, error) {
	conversation, ok := r.conversations[conversationID]
	if !ok {
		return 0, errors.NotFound("Conversation", nil)
	}

	marked := 0
	for _, message := range r.messages[conversationID] {
		if message.SenderID == readerID || message.IsReadBy(readerID) {
			continue
		}
		message.ReadBy = append(message.ReadBy, entity.ReadReceipt{UserID: readerID, ReadAt: readAt})
		if message.ReadByAll(conversation.Participants) {
			message.Status = entity.MessageStatusRead
		}
		marked++
	}
	return marked, nil
}

type stubUserRepo struct {
	users map[string]*entity.User
}

func newStubUserRepo(users ...*entity.User) *stubUserRepo {
	repo := &stubUserRepo{users: make(map[string]*entity.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return user, nil
}

type chatFixture struct {
	uc       *ChatUseCase
	convRepo *stubConversationRepo
	bus      *events.Bus
}

func newChatFixture(t *testing.T, reuseExisting bool, users ...*entity.User) *chatFixture {
	t.Helper()

	tracker := presence.NewMemoryTracker()
	manager := ws.NewManager(tracker)
	manager.Run(context.Background())

	convRepo := newStubConversationRepo()
	bus := events.NewBus(16)
	t.Cleanup(bus.Close)

	uc := NewChatUseCase(convRepo, newStubUserRepo(users...), manager, tracker, bus, reuseExisting)
	return &chatFixture{uc: uc, convRepo: convRepo, bus: bus}
}

func testUsers() (*entity.User, *entity.User) {
	return &entity.User{ID: "buyer-1", Username: "budi"}, &entity.User{ID: "seller-1", Username: "sari"}
}

func TestStartConversationWithSelf(t *testing.T) {
	buyer, seller := testUsers()
	f := newChatFixture(t, true, buyer, seller)

	_, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: buyer.ID})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestStartConversationUnknownRecipient(t *testing.T) {
	buyer, seller := testUsers()
	f := newChatFixture(t, true, buyer, seller)

	_, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: "ghost"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
}

func TestStartConversationReusesExisting(t *testing.T) {
	buyer, seller := testUsers()
	f := newChatFixture(t, true, buyer, seller)

	first, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: seller.ID})
	assert.NoError(t, err)

	second, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: seller.ID})
	assert.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.convRepo.createCalls)
}

func TestStartConversationAlwaysNewWhenReuseDisabled(t *testing.T) {
	buyer, seller := testUsers()
	f := newChatFixture(t, false, buyer, seller)

	first, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: seller.ID})
	assert.NoError(t, err)

	second, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: seller.ID})
	assert.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, f.convRepo.createCalls)
}

func TestStartConversationWithInitialMessage(t *testing.T) {
	buyer, seller := testUsers()
	f := newChatFixture(t, true, buyer, seller)

	resp, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{
		RecipientID:    seller.ID,
		InitialMessage: "Is this still available?",
	})

	assert.NoError(t, err)
	assert.Equal(t, seller.ID, resp.OtherUser.ID)
	assert.Equal(t, "Is this still available?", resp.LastMessage)

	messages, total, err := f.uc.ListMessages(context.Background(), buyer.ID, resp.ID, 20, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, buyer.ID, messages[0].SenderID)
}

func TestSendMessageSeedsSenderReceipt(t *testing.T) {
	buyer, seller := testUsers()
	f := newChatFixture(t, true, buyer, seller)

	conv, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: seller.ID})
	assert.NoError(t, err)

	resp, err := f.uc.SendMessage(context.Background(), buyer.ID, SendMessageInput{
		ConversationID: conv.ID,
		Content:        "hello",
	})

	assert.NoError(t, err)
	assert.Equal(t, entity.MessageStatusSent, resp.Status)
	assert.True(t, resp.IsReadBy(buyer.ID))
	assert.False(t, resp.IsReadBy(seller.ID))
	assert.False(t, resp.ReadByAll(conv.Participants))
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	buyer, seller := testUsers()
	stranger := &entity.User{ID: "stranger-1", Username: "asep"}
	f := newChatFixture(t, true, buyer, seller, stranger)

	conv, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: seller.ID})
	assert.NoError(t, err)

	_, err = f.uc.SendMessage(context.Background(), stranger.ID, SendMessageInput{
		ConversationID: conv.ID,
		Content:        "let me in",
	})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
	assert.Empty(t, f.convRepo.messages[conv.ID])
}

func TestSendMessageValidatesVariants(t *testing.T) {
	buyer, seller := testUsers()
	f := newChatFixture(t, true, buyer, seller)

	conv, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: seller.ID})
	assert.NoError(t, err)

	cases := []SendMessageInput{
		{ConversationID: conv.ID, Type: entity.MessageTypeText},
		{ConversationID: conv.ID, Type: entity.MessageTypeSellable},
		{ConversationID: conv.ID, Type: entity.MessageTypeImage},
		{ConversationID: conv.ID, Type: "video", Content: "clip"},
	}
	for _, input := range cases {
		_, err := f.uc.SendMessage(context.Background(), buyer.ID, input)
		assert.True(t, errors.Is(err, "BAD_REQUEST"), "type %q should be rejected", input.Type)
	}

	resp, err := f.uc.SendMessage(context.Background(), buyer.ID, SendMessageInput{
		ConversationID: conv.ID,
		Type:           entity.MessageTypeSellable,
		SellableID:     "sellable-9",
	})
	assert.NoError(t, err)
	assert.Equal(t, entity.MessageTypeSellable, resp.Type)
}

func TestSendMessageQueuesEventForOfflineParticipant(t *testing.T) {
	buyer, seller := testUsers()
	f := newChatFixture(t, true, buyer, seller)

	conv, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: seller.ID})
	assert.NoError(t, err)

	_, err = f.uc.SendMessage(context.Background(), buyer.ID, SendMessageInput{
		ConversationID: conv.ID,
		Content:        "masih ada?",
	})
	assert.NoError(t, err)

	select {
	case event := <-f.bus.Events():
		assert.Equal(t, entity.KindMessageReceived, event.Kind)
		assert.Equal(t, seller.ID, event.Recipient)
		payload, ok := event.Payload.(entity.MessagePayload)
		assert.True(t, ok)
		assert.Equal(t, conv.ID, payload.ConversationID)
		assert.Equal(t, "masih ada?", payload.Preview)
	default:
		t.Fatal("expected a message_received event for the offline participant")
	}
}

func TestMarkConversationReadIsIdempotent(t *testing.T) {
	buyer, seller := testUsers()
	f := newChatFixture(t, true, buyer, seller)

	conv, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: seller.ID})
	assert.NoError(t, err)

	for _, content := range []string{"first", "second"} {
		_, err := f.uc.SendMessage(context.Background(), buyer.ID, SendMessageInput{
			ConversationID: conv.ID,
			Content:        content,
		})
		assert.NoError(t, err)
	}

	assert.NoError(t, f.uc.MarkConversationRead(context.Background(), seller.ID, conv.ID))
	for _, message := range f.convRepo.messages[conv.ID] {
		assert.True(t, message.ReadByAll(conv.Participants))
		assert.Equal(t, entity.MessageStatusRead, message.Status)
	}

	// A second pass finds nothing left to mark.
	marked, err := f.convRepo.MarkMessagesRead(context.Background(), conv.ID, seller.ID, time.Now())
	assert.NoError(t, err)
	assert.Zero(t, marked)
}

func TestMarkConversationReadRejectsNonParticipant(t *testing.T) {
	buyer, seller := testUsers()
	stranger := &entity.User{ID: "stranger-1", Username: "asep"}
	f := newChatFixture(t, true, buyer, seller, stranger)

	conv, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: seller.ID})
	assert.NoError(t, err)

	err = f.uc.MarkConversationRead(context.Background(), stranger.ID, conv.ID)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}

func TestListConversationsIncludesOtherUser(t *testing.T) {
	buyer, seller := testUsers()
	f := newChatFixture(t, true, buyer, seller)

	_, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: seller.ID})
	assert.NoError(t, err)

	conversations, total, err := f.uc.ListConversations(context.Background(), buyer.ID, 10, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, seller.ID, conversations[0].OtherUser.ID)

	fromSeller, _, err := f.uc.ListConversations(context.Background(), seller.ID, 10, 0)
	assert.NoError(t, err)
	assert.Equal(t, buyer.ID, fromSeller[0].OtherUser.ID)
}

func TestListMessagesRequiresParticipant(t *testing.T) {
	buyer, seller := testUsers()
	stranger := &entity.User{ID: "stranger-1", Username: "asep"}
	f := newChatFixture(t, true, buyer, seller, stranger)

	conv, err := f.uc.StartConversation(context.Background(), buyer.ID, StartConversationInput{RecipientID: seller.ID})
	assert.NoError(t, err)

	_, _, err = f.uc.ListMessages(context.Background(), stranger.ID, conv.ID, 20, 0)
	assert.True(t, errors.Is(err, "FORBIDDEN"))
}
