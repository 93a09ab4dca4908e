package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

type NotificationKind string

const (
	KindOrderPlaced           NotificationKind = "order_placed"
	KindOrderConfirmed        NotificationKind = "order_confirmed"
	KindOrderCompleted        NotificationKind = "order_completed"
	KindOrderCancelled        NotificationKind = "order_cancelled"
	KindPaymentReceived       NotificationKind = "payment_received"
	KindReviewReceived        NotificationKind = "review_received"
	KindBusinessVerified      NotificationKind = "business_verified"
	KindVerificationRejected  NotificationKind = "verification_rejected"
	KindMessageReceived       NotificationKind = "message_received"
	KindDisputeOpened         NotificationKind = "dispute_opened"
	KindDisputeResolved       NotificationKind = "dispute_resolved"
	KindBusinessVisited       NotificationKind = "business_visited"
	KindUpcomingOrderInterest NotificationKind = "upcoming_order_interest"
)

// HighFrequency reports whether the kind is an activity-style notification
// that must be de-duplicated within a trailing window before creation.
func (k NotificationKind) HighFrequency() bool {
	return k == KindBusinessVisited || k == KindUpcomingOrderInterest
}

// NotificationPayload is the kind-specific half of a notification. Each kind
// maps to exactly one variant; the variant carries only the fields that kind
// needs. Subject identifies what the notification is about and keys the
// de-duplication check for high-frequency kinds.
type NotificationPayload interface {
	Subject() string
}

// OrderPayload backs the order_* and payment_received kinds.
type OrderPayload struct {
	TransactionID string  `json:"transaction_id"`
	SellableID    string  `json:"sellable_id,omitempty"`
	Amount        float64 `json:"amount"`
}

func (p OrderPayload) Subject() string { return p.TransactionID }

// ReviewPayload backs review_received.
type ReviewPayload struct {
	ReviewID   string `json:"review_id"`
	BusinessID string `json:"business_id"`
	Rating     int    `json:"rating"`
}

func (p ReviewPayload) Subject() string { return p.ReviewID }

// VerificationPayload backs business_verified and verification_rejected.
type VerificationPayload struct {
	BusinessID string `json:"business_id"`
	Reason     string `json:"reason,omitempty"`
}

func (p VerificationPayload) Subject() string { return p.BusinessID }

// MessagePayload backs message_received.
type MessagePayload struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name,omitempty"`
	Preview        string `json:"preview,omitempty"`
}

func (p MessagePayload) Subject() string { return p.ConversationID }

// DisputePayload backs dispute_opened and dispute_resolved.
type DisputePayload struct {
	DisputeID     string `json:"dispute_id"`
	TransactionID string `json:"transaction_id"`
}

func (p DisputePayload) Subject() string { return p.DisputeID }

// VisitPayload backs business_visited.
type VisitPayload struct {
	BusinessID  string `json:"business_id"`
	VisitorName string `json:"visitor_name,omitempty"`
}

func (p VisitPayload) Subject() string { return p.BusinessID }

// InterestPayload backs upcoming_order_interest.
type InterestPayload struct {
	BusinessID string `json:"business_id"`
	SellableID string `json:"sellable_id"`
	UserName   string `json:"user_name,omitempty"`
}

func (p InterestPayload) Subject() string { return p.SellableID }

type Notification struct {
	ID          string              `json:"id" firestore:"id"`
	RecipientID string              `json:"recipient_id" firestore:"recipientId"`
	Kind        NotificationKind    `json:"kind" firestore:"kind"`
	Payload     NotificationPayload `json:"payload" firestore:"-"`
	// Subject is denormalized from the payload so the de-dup query can filter
	// on it without decoding every document.
	Subject   string     `json:"-" firestore:"subject"`
	Read      bool       `json:"read" firestore:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty" firestore:"readAt,omitempty"`
	CreatedAt time.Time  `json:"created_at" firestore:"createdAt"`
}

// EncodePayload flattens a payload variant into a map for document storage.
func EncodePayload(p NotificationPayload) (map[string]interface{}, error) {
	if p == nil {
		return nil, fmt.Errorf("nil notification payload")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// DecodePayload rebuilds the payload variant for a kind from stored data.
func DecodePayload(kind NotificationKind, data map[string]interface{}) (NotificationPayload, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindOrderPlaced, KindOrderConfirmed, KindOrderCompleted, KindOrderCancelled, KindPaymentReceived:
		var p OrderPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case KindReviewReceived:
		var p ReviewPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case KindBusinessVerified, KindVerificationRejected:
		var p VerificationPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case KindMessageReceived:
		var p MessagePayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case KindDisputeOpened, KindDisputeResolved:
		var p DisputePayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case KindBusinessVisited:
		var p VisitPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	case KindUpcomingOrderInterest:
		var p InterestPayload
		err = json.Unmarshal(raw, &p)
		return p, err
	default:
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}
}
