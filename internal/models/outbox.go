package models

import (
	"encoding/json"
	"time"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxMessage is one change-feed event waiting in the outbox table. Rows
// are written in the same transaction as the mutation they describe and
// published to Kafka by the outbox processor for the realtime view sync.
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// ChangeFeedEvent is the payload envelope published on the change feed.
type ChangeFeedEvent struct {
	EventType   string      `json:"event_type"`
	EventID     string      `json:"event_id"`
	AggregateID string      `json:"aggregate_id"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Data        interface{} `json:"data"`
}

// Change-feed event types
const (
	EventLoadCreated               = "load_created"
	EventLoadStatusChanged         = "load_status_changed"
	EventLoadAssignmentUpdated     = "load_assignment_updated"
	EventDriverAvailabilityChanged = "driver_availability_changed"
	EventPaymentStatusChanged      = "payment_status_changed"
)

func newOutboxMessage(aggregateType, aggregateID, eventType string, data interface{}) (*OutboxMessage, error) {
	event := ChangeFeedEvent{
		EventType:   eventType,
		EventID:     GenerateID("evt"),
		AggregateID: aggregateID,
		OccurredAt:  GetCurrentTime(),
		Data:        data,
	}

	payload, err := json.Marshal(event)

	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType:      aggregateType,
		AggregateID:        aggregateID,
		EventType:          eventType,
		Payload:            payload,
		CreatedAt:          GetCurrentTime(),
		ProcessingAttempts: 0,
		Status:             OutboxStatusPending,
	}, nil
}

// NewLoadCreatedEvent builds the change-feed event for a new pending load.
func NewLoadCreatedEvent(load *Load) (*OutboxMessage, error) {
	return newOutboxMessage("load", load.ID, EventLoadCreated, load)
}

// NewLoadStatusChangedEvent builds the change-feed event for a committed
// status transition.
func NewLoadStatusChangedEvent(load *Load, oldStatus LoadStatus) (*OutboxMessage, error) {
	return newOutboxMessage("load", load.ID, EventLoadStatusChanged, map[string]interface{}{
		"load_id":    load.ID,
		"client_id":  load.ClientID,
		"old_status": oldStatus,
		"new_status": load.Status,
	})
}

// NewLoadAssignmentUpdatedEvent builds the change-feed event for an
// edit-in-place of an existing assignment.
func NewLoadAssignmentUpdatedEvent(load *Load) (*OutboxMessage, error) {
	return newOutboxMessage("load", load.ID, EventLoadAssignmentUpdated, load)
}

// NewDriverAvailabilityChangedEvent builds the change-feed event for a
// driver availability change.
func NewDriverAvailabilityChangedEvent(driver *Driver) (*OutboxMessage, error) {
	return newOutboxMessage("driver", driver.ID, EventDriverAvailabilityChanged, map[string]interface{}{
		"driver_id":           driver.ID,
		"availability_status": driver.AvailabilityStatus,
		"available_at":        driver.AvailableAt,
	})
}

// NewPaymentStatusChangedEvent builds the change-feed event for a payment
// confirmation or failure.
func NewPaymentStatusChangedEvent(load *Load) (*OutboxMessage, error) {
	return newOutboxMessage("load", load.ID, EventPaymentStatusChanged, map[string]interface{}{
		"load_id":        load.ID,
		"client_id":      load.ClientID,
		"payment_status": load.PaymentStatus,
		"paid_at":        load.PaidAt,
	})
}
