package repository

import (
	"context"
	"time"

	"lokapasar/internal/domain/entity"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	// FindRecentUnread finds an unread notification of the same
	// kind/recipient/subject created after since; used for de-duplication of
	// high-frequency kinds. Returns NOT_FOUND when there is none.
	FindRecentUnread(ctx context.Context, recipientID string, kind entity.NotificationKind, subject string, since time.Time) (*entity.Notification, error)
	Update(ctx context.Context, notification *entity.Notification) error
	MarkAllRead(ctx context.Context, recipientID string, readAt time.Time) (int, error)
	Delete(ctx context.Context, id string) error
}
