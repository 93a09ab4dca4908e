package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lokapasar/internal/domain/entity"
	"lokapasar/internal/domain/repository"
	"lokapasar/pkg/errors"
)

type firestoreNotificationRepository struct {
	client *firestore.Client
}

func NewFirestoreNotificationRepository(client *firestore.Client) repository.NotificationRepository {
	return &firestoreNotificationRepository{
		client: client,
	}
}

// notificationDoc is the stored shape; the payload union is flattened into a
// map and rebuilt by kind on the way out.
type notificationDoc struct {
	ID          string                 `firestore:"id"`
	RecipientID string                 `firestore:"recipientId"`
	Kind        string                 `firestore:"kind"`
	Payload     map[string]interface{} `firestore:"payload"`
	Subject     string                 `firestore:"subject"`
	Read        bool                   `firestore:"read"`
	ReadAt      *time.Time             `firestore:"readAt,omitempty"`
	CreatedAt   time.Time              `firestore:"createdAt"`
}

func toDoc(n *entity.Notification) (*notificationDoc, error) {
	payload, err := entity.EncodePayload(n.Payload)
	if err != nil {
		return nil, err
	}
	return &notificationDoc{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Kind:        string(n.Kind),
		Payload:     payload,
		Subject:     n.Subject,
		Read:        n.Read,
		ReadAt:      n.ReadAt,
		CreatedAt:   n.CreatedAt,
	}, nil
}

func fromDoc(doc *notificationDoc) (*entity.Notification, error) {
	kind := entity.NotificationKind(doc.Kind)
	payload, err := entity.DecodePayload(kind, doc.Payload)
	if err != nil {
		return nil, err
	}
	return &entity.Notification{
		ID:          doc.ID,
		RecipientID: doc.RecipientID,
		Kind:        kind,
		Payload:     payload,
		Subject:     doc.Subject,
		Read:        doc.Read,
		ReadAt:      doc.ReadAt,
		CreatedAt:   doc.CreatedAt,
	}, nil
}

func (r *firestoreNotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	if notification.Subject == "" && notification.Payload != nil {
		notification.Subject = notification.Payload.Subject()
	}

	doc, err := toDoc(notification)
	if err != nil {
		return errors.Internal("Failed to encode notification payload", err)
	}

	_, err = r.client.Collection("notifications").Doc(notification.ID).Set(ctx, doc)
	if err != nil {
		return errors.Internal("Failed to create notification", err)
	}

	return nil
}

func (r *firestoreNotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	snap, err := r.client.Collection("notifications").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Notification", err)
		}
		return nil, errors.Internal("Failed to get notification", err)
	}

	var doc notificationDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Internal("Failed to parse notification data", err)
	}

	notification, err := fromDoc(&doc)
	if err != nil {
		return nil, errors.Internal("Failed to decode notification payload", err)
	}
	return notification, nil
}

func (r *firestoreNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error) {
	query := r.client.Collection("notifications").
		Where("recipientId", "==", recipientID)
	if unreadOnly {
		query = query.Where("read", "==", false)
	}
	query = query.OrderBy("createdAt", firestore.Desc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching notifications for user %s: %v", recipientID, err)
		return nil, 0, errors.Internal("Failed to fetch notifications", err)
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

	var notifications []*entity.Notification
	for i := start; i < end; i++ {
		var doc notificationDoc
		if err := allDocs[i].DataTo(&doc); err != nil {
			log.Printf("Error parsing notification data for user %s: %v", recipientID, err)
			continue // Skip bad data instead of failing
		}
		notification, err := fromDoc(&doc)
		if err != nil {
			log.Printf("Error decoding notification payload %s: %v", doc.ID, err)
			continue
		}
		notifications = append(notifications, notification)
	}

	return notifications, total, nil
}

func (r *firestoreNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	docs, err := r.client.Collection("notifications").
		Where("recipientId", "==", recipientID).
		Where("read", "==", false).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to count unread notifications", err)
	}
	return int64(len(docs)), nil
}

func (r *firestoreNotificationRepository) FindRecentUnread(ctx context.Context, recipientID string, kind entity.NotificationKind, subject string, since time.Time) (*entity.Notification, error) {
	query := r.client.Collection("notifications").
		Where("recipientId", "==", recipientID).
		Where("kind", "==", string(kind)).
		Where("subject", "==", subject).
		Where("read", "==", false).
		Where("createdAt", ">=", since).
		Limit(1)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to query recent notifications", err)
	}
	if len(docs) == 0 {
		return nil, errors.NotFound("Notification", nil)
	}

	var doc notificationDoc
	if err := docs[0].DataTo(&doc); err != nil {
		return nil, errors.Internal("Failed to parse notification data", err)
	}
	notification, err := fromDoc(&doc)
	if err != nil {
		return nil, errors.Internal("Failed to decode notification payload", err)
	}
	return notification, nil
}

func (r *firestoreNotificationRepository) Update(ctx context.Context, notification *entity.Notification) error {
	doc, err := toDoc(notification)
	if err != nil {
		return errors.Internal("Failed to encode notification payload", err)
	}

	_, err = r.client.Collection("notifications").Doc(notification.ID).Set(ctx, doc)
	if err != nil {
		return errors.Internal("Failed to update notification", err)
	}
	return nil
}

func (r *firestoreNotificationRepository) MarkAllRead(ctx context.Context, recipientID string, readAt time.Time) (int, error) {
	docs, err := r.client.Collection("notifications").
		Where("recipientId", "==", recipientID).
		Where("read", "==", false).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to fetch unread notifications", err)
	}

	marked := 0
	for _, snap := range docs {
		_, err := snap.Ref.Update(ctx, []firestore.Update{
			{Path: "read", Value: true},
			{Path: "readAt", Value: readAt},
		})
		if err != nil {
			return marked, errors.Internal("Failed to mark notification as read", err)
		}
		marked++
	}

	return marked, nil
}

func (r *firestoreNotificationRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection("notifications").Doc(id).Delete(ctx)
	if err != nil {
		return errors.Internal("Failed to delete notification", err)
	}
	return nil
}
