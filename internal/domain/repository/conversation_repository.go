package repository

import (
	"context"
	"time"

	"lokapasar/internal/domain/entity"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	// FindDirect looks up an existing conversation whose participant set is
	// exactly {a, b}. Returns NOT_FOUND when there is none.
	FindDirect(ctx context.Context, a, b string) (*entity.Conversation, error)
	ListByParticipant(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error)
	Update(ctx context.Context, conversation *entity.Conversation) error

	// AppendMessage persists the message and updates the parent conversation's
	// last-message summary as one atomic step.
	AppendMessage(ctx context.Context, conversation *entity.Conversation, message *entity.Message) error
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)
	GetMessageByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error)
	UpdateMessage(ctx context.Context, conversationID string, message *entity.Message) error
	// MarkMessagesRead appends a read receipt for readerID to every message in
	// the conversation authored by someone else that readerID has not read yet.
	// Idempotent; returns how many messages were newly marked.
	MarkMessagesRead(ctx context.Context, conversationID, readerID string, readAt time.Time) (int, error)
}
