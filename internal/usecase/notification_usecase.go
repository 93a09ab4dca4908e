package usecase

import (
	"context"
	"log"
	"time"

	"lokapasar/internal/domain/entity"
	"lokapasar/internal/domain/repository"
	"lokapasar/internal/infrastructure/events"
	"lokapasar/internal/infrastructure/presence"
	ws "lokapasar/internal/infrastructure/websocket"
	"lokapasar/pkg/errors"
	"lokapasar/pkg/logger"
)

type NotificationUseCase struct {
	notificationRepo repository.NotificationRepository
	wsManager        *ws.Manager
	tracker          presence.Tracker
	dedupWindow      time.Duration
}

func NewNotificationUseCase(
	notificationRepo repository.NotificationRepository,
	wsManager *ws.Manager,
	tracker presence.Tracker,
	dedupWindow time.Duration,
) *NotificationUseCase {
	return &NotificationUseCase{
		notificationRepo: notificationRepo,
		wsManager:        wsManager,
		tracker:          tracker,
		dedupWindow:      dedupWindow,
	}
}

// Run consumes domain events from the bus until it is closed or ctx is
// cancelled. Every event is processed on its own; a failed notification is
// logged and dropped, never propagated back to the operation that emitted it.
func (uc *NotificationUseCase) Run(ctx context.Context, bus *events.Bus) {
	go func() {
		for {
			select {
			case event, ok := <-bus.Events():
				if !ok {
					return
				}
				uc.process(ctx, event)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (uc *NotificationUseCase) process(ctx context.Context, event events.DomainEvent) {
	if event.Recipient == "" || event.Payload == nil {
		logger.Warn("Dropping malformed domain event: kind=%s", event.Kind)
		return
	}

	if event.Kind.HighFrequency() {
		since := time.Now().Add(-uc.dedupWindow)
		existing, err := uc.notificationRepo.FindRecentUnread(ctx, event.Recipient, event.Kind, event.Payload.Subject(), since)
		if err == nil && existing != nil {
			// An unread notification about the same subject already exists;
			// creating another would just be noise.
			return
		}
		if err != nil && !errors.Is(err, "NOT_FOUND") {
			logger.LogNotificationError(event.Recipient, string(event.Kind), err)
			return
		}
	}

	notification := &entity.Notification{
		RecipientID: event.Recipient,
		Kind:        event.Kind,
		Payload:     event.Payload,
		Subject:     event.Payload.Subject(),
		CreatedAt:   event.OccurredAt,
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	if err := uc.notificationRepo.Create(ctx, notification); err != nil {
		logger.LogNotificationError(event.Recipient, string(event.Kind), err)
		return
	}

	// Live push is best-effort; the stored notification is the durable copy.
	if uc.tracker.IsOnline(event.Recipient) {
		uc.wsManager.SendToUser(event.Recipient, ws.NewEvent(ws.EventNotification, notification))
	}
}

func (uc *NotificationUseCase) List(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error) {
	notifications, total, err := uc.notificationRepo.ListByRecipient(ctx, recipientID, unreadOnly, limit, offset)
	if err != nil {
		log.Printf("List Error: Failed to list notifications for user %s: %v", recipientID, err)
		return nil, 0, err
	}
	return notifications, total, nil
}

func (uc *NotificationUseCase) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	count, err := uc.notificationRepo.CountUnread(ctx, recipientID)
	if err != nil {
		log.Printf("UnreadCount Error: Failed to count unread notifications for user %s: %v", recipientID, err)
		return 0, err
	}
	return count, nil
}

func (uc *NotificationUseCase) MarkRead(ctx context.Context, userID, notificationID string) (*entity.Notification, error) {
	notification, err := uc.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if notification.RecipientID != userID {
		log.Printf("MarkRead Error: User %s attempted to read notification %s owned by %s", userID, notificationID, notification.RecipientID)
		return nil, errors.Forbidden("Notification does not belong to this user", nil)
	}

	if notification.Read {
		return notification, nil
	}

	now := time.Now()
	notification.Read = true
	notification.ReadAt = &now
	if err := uc.notificationRepo.Update(ctx, notification); err != nil {
		log.Printf("MarkRead Error: Failed to update notification %s: %v", notificationID, err)
		return nil, err
	}
	return notification, nil
}

func (uc *NotificationUseCase) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	marked, err := uc.notificationRepo.MarkAllRead(ctx, recipientID, time.Now())
	if err != nil {
		log.Printf("MarkAllRead Error: Failed for user %s: %v", recipientID, err)
		return 0, err
	}
	return marked, nil
}

func (uc *NotificationUseCase) Delete(ctx context.Context, userID, notificationID string) error {
	notification, err := uc.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if notification.RecipientID != userID {
		return errors.Forbidden("Notification does not belong to this user", nil)
	}
	return uc.notificationRepo.Delete(ctx, notificationID)
}
