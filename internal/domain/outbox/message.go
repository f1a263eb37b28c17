package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/match"
)

// Status defines message publishing states
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusProcessed       Status = "PROCESSED"
	StatusFailedToPublish Status = "FAILED_TO_PUBLISH"
)

// EventType defines the reconciliation lifecycle events published downstream
type EventType string

const (
	EventMatchCreated  EventType = "MATCH_CREATED"
	EventMatchRemoved  EventType = "MATCH_REMOVED"
	EventLineIgnored   EventType = "LINE_IGNORED"
	EventLineUnignored EventType = "LINE_UNIGNORED"
)

// Event is the payload published for each match lifecycle change. It is
// written to the outbox in the same database transaction as the change
// itself.
type Event struct {
	Type          EventType        `json:"type"`
	LineID        uuid.UUID        `json:"line_id"`
	MatchID       *uuid.UUID       `json:"match_id,omitempty"`
	RecordID      *uuid.UUID       `json:"record_id,omitempty"`
	MatchedAmount *decimal.Decimal `json:"matched_amount,omitempty"`
	LineStatus    bankfeed.Status  `json:"line_status"`
	Method        match.Method     `json:"method,omitempty"`
	Score         int              `json:"score,omitempty"`
	Actor         string           `json:"actor,omitempty"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// Message stores a pending reconciliation event for reliable publishing
type Message struct {
	ID            int64           `json:"id"`
	LineID        uuid.UUID       `json:"line_id"`
	EventType     EventType       `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"created_at"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
}

func NewMessage(event *Event) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Message{
		LineID:    event.LineID,
		EventType: event.Type,
		Payload:   payload,
		Status:    StatusPending,
		Attempts:  0,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = StatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = StatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetEvent extracts the reconciliation event from the payload
func (m *Message) GetEvent() (*Event, error) {
	var event Event
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
