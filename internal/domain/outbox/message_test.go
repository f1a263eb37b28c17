package outbox

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/match"
)

func TestNewMessage_RoundTrip(t *testing.T) {
	matchID := uuid.New()
	recordID := uuid.New()
	amount := decimal.RequireFromString("250.00")

	event := &Event{
		Type:          EventMatchCreated,
		LineID:        uuid.New(),
		MatchID:       &matchID,
		RecordID:      &recordID,
		MatchedAmount: &amount,
		LineStatus:    bankfeed.StatusMatched,
		Method:        match.MethodManual,
		Score:         90,
		Actor:         "alice",
		CorrelationID: "corr-1",
		OccurredAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	msg, err := NewMessage(event)
	require.NoError(t, err)

	assert.Equal(t, event.LineID, msg.LineID)
	assert.Equal(t, EventMatchCreated, msg.EventType)
	assert.Equal(t, StatusPending, msg.Status)
	assert.Zero(t, msg.Attempts)

	decoded, err := msg.GetEvent()
	require.NoError(t, err)
	assert.Equal(t, event.Type, decoded.Type)
	assert.Equal(t, event.LineID, decoded.LineID)
	assert.Equal(t, *event.MatchID, *decoded.MatchID)
	assert.True(t, decoded.MatchedAmount.Equal(amount))
	assert.Equal(t, event.Actor, decoded.Actor)
	assert.Equal(t, event.CorrelationID, decoded.CorrelationID)
	assert.True(t, event.OccurredAt.Equal(decoded.OccurredAt))
}

func TestGetEvent_InvalidPayload(t *testing.T) {
	msg := &Message{Payload: []byte("not json")}

	_, err := msg.GetEvent()
	assert.Error(t, err)
}

func TestMessage_StateTransitions(t *testing.T) {
	t.Run("increment attempts", func(t *testing.T) {
		msg := &Message{Status: StatusPending}

		msg.IncrementAttempts()
		msg.IncrementAttempts()

		assert.Equal(t, 2, msg.Attempts)
		assert.NotNil(t, msg.LastAttemptAt)
		assert.Equal(t, StatusPending, msg.Status)
	})

	t.Run("mark as processed", func(t *testing.T) {
		msg := &Message{Status: StatusPending}

		msg.MarkAsProcessed()

		assert.Equal(t, StatusProcessed, msg.Status)
		assert.NotNil(t, msg.LastAttemptAt)
	})

	t.Run("mark as failed", func(t *testing.T) {
		msg := &Message{Status: StatusPending}

		msg.MarkAsFailed()

		assert.Equal(t, StatusFailedToPublish, msg.Status)
		assert.NotNil(t, msg.LastAttemptAt)
	})
}
