package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lokapasar/internal/domain/entity"
	"lokapasar/internal/domain/repository"
	"lokapasar/pkg/errors"
)

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}

	now := time.Now()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	_, err := r.client.Collection("conversations").Doc(conversation.ID).Set(ctx, conversation)
	if err != nil {
		return errors.Internal("Failed to create conversation", err)
	}

	return nil
}

func (r *firestoreConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.client.Collection("conversations").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}

	var conversation entity.Conversation
	if err := doc.DataTo(&conversation); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}

	return &conversation, nil
}

func (r *firestoreConversationRepository) FindDirect(ctx context.Context, a, b string) (*entity.Conversation, error) {
	query := r.client.Collection("conversations").Where("participants", "array-contains", a)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to query conversations", err)
	}

	// Firestore cannot match an exact participant set, so filter in memory.
	for _, doc := range docs {
		var conversation entity.Conversation
		if err := doc.DataTo(&conversation); err != nil {
			continue // Skip malformed documents
		}
		if len(conversation.Participants) == 2 && conversation.HasParticipant(b) {
			return &conversation, nil
		}
	}

	return nil, errors.NotFound("Conversation", nil)
}

func (r *firestoreConversationRepository) ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error) {
	query := r.client.Collection("conversations").
		Where("participants", "array-contains", userID).
		OrderBy("lastMessageAt", firestore.Desc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching conversations for user %s: %v", userID, err)
		return nil, 0, errors.Internal("Failed to fetch conversations", err)
	}

	total := int64(len(allDocs))

	start := offset
	end := len(allDocs)
	if limit > 0 {
		end = start + limit
		if end > len(allDocs) {
			end = len(allDocs)
		}
	}
	if start > len(allDocs) {
		start = len(allDocs)
	}

	var conversations []*entity.Conversation
	for i := start; i < end; i++ {
		var conversation entity.Conversation
		if err := allDocs[i].DataTo(&conversation); err != nil {
			log.Printf("Error parsing conversation data for user %s: %v", userID, err)
			continue // Skip bad data instead of failing
		}
		conversations = append(conversations, &conversation)
	}

	return conversations, total, nil
}

func (r *firestoreConversationRepository) Update(ctx context.Context, conversation *entity.Conversation) error {
	conversation.UpdatedAt = time.Now()

	_, err := r.client.Collection("conversations").Doc(conversation.ID).Set(ctx, conversation)
	if err != nil {
		return errors.Internal("Failed to update conversation", err)
	}

	return nil
}

// AppendMessage writes the message and the refreshed conversation summary in
// a single Firestore transaction, so the summary never points at a message
// that failed to persist.
func (r *firestoreConversationRepository) AppendMessage(ctx context.Context, conversation *entity.Conversation, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	conversation.LastMessageID = message.ID
	conversation.LastMessage = messagePreview(message)
	conversation.LastMessageAt = message.CreatedAt
	conversation.UpdatedAt = message.CreatedAt

	convRef := r.client.Collection("conversations").Doc(conversation.ID)
	msgRef := convRef.Collection("messages").Doc(message.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(msgRef, message); err != nil {
			return err
		}
		return tx.Set(convRef, conversation)
	})
	if err != nil {
		return errors.Internal("Failed to append message", err)
	}

	return nil
}

func (r *firestoreConversationRepository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.client.Collection("conversations").Doc(conversationID).Collection("messages").
		OrderBy("createdAt", firestore.Asc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while counting messages for conversation %s: %v", conversationID, err)
		return nil, 0, errors.Internal("Failed to count messages", err)
	}
	total := int64(len(countDocs))

	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	var messages []*entity.Message

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("Firestore error while iterating messages for conversation %s: %v", conversationID, err)
			return nil, 0, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			log.Printf("Error parsing message data for conversation %s: %v", conversationID, err)
			return nil, 0, errors.Internal("Failed to parse message data", err)
		}

		messages = append(messages, &message)
	}

	return messages, total, nil
}

func (r *firestoreConversationRepository) GetMessageByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	doc, err := r.client.Collection("conversations").Doc(conversationID).Collection("messages").Doc(messageID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &message, nil
}

func (r *firestoreConversationRepository) UpdateMessage(ctx context.Context, conversationID string, message *entity.Message) error {
	_, err := r.client.Collection("conversations").Doc(conversationID).Collection("messages").Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to update message", err)
	}
	return nil
}

func (r *firestoreConversationRepository) MarkMessagesRead(ctx context.Context, conversationID, readerID string, readAt time.Time) (int, error) {
	conversation, err := r.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}

	msgCollection := r.client.Collection("conversations").Doc(conversationID).Collection("messages")

	docs, err := msgCollection.OrderBy("createdAt", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to fetch messages for read marking", err)
	}

	marked := 0
	for _, doc := range docs {
		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			log.Printf("MarkMessagesRead: skipping malformed message in conversation %s: %v", conversationID, err)
			continue
		}

		if message.SenderID == readerID || message.IsReadBy(readerID) {
			continue
		}

		message.ReadBy = append(message.ReadBy, entity.ReadReceipt{UserID: readerID, ReadAt: readAt})
		// Status stays advisory; ReadBy is the authoritative record.
		if message.ReadByAll(conversation.Participants) {
			message.Status = entity.MessageStatusRead
		}
		if _, err := doc.Ref.Set(ctx, message); err != nil {
			return marked, errors.Internal("Failed to update message read status", err)
		}
		marked++
	}

	return marked, nil
}

func messagePreview(message *entity.Message) string {
	switch message.Type {
	case entity.MessageTypeImage:
		return "[image]"
	case entity.MessageTypeSellable:
		return "[listing]"
	default:
		return message.Content
	}
}
