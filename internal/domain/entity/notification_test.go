package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighFrequencyKinds(t *testing.T) {
	assert.True(t, KindBusinessVisited.HighFrequency())
	assert.True(t, KindUpcomingOrderInterest.HighFrequency())
	assert.False(t, KindOrderPlaced.HighFrequency())
	assert.False(t, KindMessageReceived.HighFrequency())
}

func TestPayloadRoundTrip(t *testing.T) {
	original := OrderPayload{TransactionID: "txn-1", SellableID: "sellable-9", Amount: 150000}

	encoded, err := EncodePayload(original)
	assert.NoError(t, err)
	assert.Equal(t, "txn-1", encoded["transaction_id"])

	decoded, err := DecodePayload(KindOrderPlaced, encoded)
	assert.NoError(t, err)
	assert.Equal(t, original, decoded)
	assert.Equal(t, "txn-1", decoded.Subject())
}

func TestDecodePayloadPicksVariantByKind(t *testing.T) {
	data := map[string]interface{}{
		"conversation_id": "conv-1",
		"sender_id":       "buyer-1",
		"preview":         "masih ada?",
	}

	decoded, err := DecodePayload(KindMessageReceived, data)
	assert.NoError(t, err)

	payload, ok := decoded.(MessagePayload)
	assert.True(t, ok)
	assert.Equal(t, "conv-1", payload.Subject())
	assert.Equal(t, "masih ada?", payload.Preview)
}

func TestDecodePayloadUnknownKind(t *testing.T) {
	_, err := DecodePayload(NotificationKind("carrier_pigeon"), map[string]interface{}{})
	assert.Error(t, err)
}

func TestEncodePayloadNil(t *testing.T) {
	_, err := EncodePayload(nil)
	assert.Error(t, err)
}
