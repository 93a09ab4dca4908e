package entity

import "time"

// Message payload variants. A message is exactly one of these; the Type tag
// says which of the payload fields is meaningful.
const (
	MessageTypeText     = "text"
	MessageTypeSellable = "sellable"
	MessageTypeImage    = "image"
)

const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// ReadReceipt records that a participant has seen the message.
type ReadReceipt struct {
	UserID string    `json:"user_id" firestore:"userId"`
	ReadAt time.Time `json:"read_at" firestore:"readAt"`
}

type Message struct {
	ID             string        `json:"id" firestore:"id"`
	ConversationID string        `json:"conversation_id" firestore:"conversationId"`
	SenderID       string        `json:"sender_id" firestore:"senderId"`
	Type           string        `json:"type" firestore:"type"`
	Content        string        `json:"content,omitempty" firestore:"content,omitempty"`
	SellableID     string        `json:"sellable_id,omitempty" firestore:"sellableId,omitempty"`
	ImageURL       string        `json:"image_url,omitempty" firestore:"imageUrl,omitempty"`
	Status         string        `json:"status" firestore:"status"`
	ReadBy         []ReadReceipt `json:"read_by" firestore:"readBy"`
	CreatedAt      time.Time     `json:"created_at" firestore:"createdAt"`
}

// IsReadBy reports whether userID already has a read receipt on the message.
func (m *Message) IsReadBy(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// ReadByAll reports whether every non-sender participant has read the message.
// The sender's own receipt (seeded at creation) does not count toward this.
func (m *Message) ReadByAll(participants []string) bool {
	for _, p := range participants {
		if p == m.SenderID {
			continue
		}
		if !m.IsReadBy(p) {
			return false
		}
	}
	return true
}
