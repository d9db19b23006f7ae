package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/printworks_backend/utils"
	"gorm.io/gorm"
)

// Outbox publish statuses for OutboxMessage.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

const EventMaterialDispatched = "material.dispatched"

// OutboxMessage is a side effect recorded in the same transaction as the
// mutation that caused it and published after commit by workflow.OutboxDispatcher.
type OutboxMessage struct {
	ID               int        `gorm:"primary_key" json:"id"`
	ReferenceType    string     `gorm:"size:50;not null;index:idx_outbox_reference" json:"reference_type"`
	ReferenceId      int        `gorm:"not null;index:idx_outbox_reference" json:"reference_id"`
	EventType        string     `gorm:"size:50;not null" json:"event_type"`
	Payload          []byte     `gorm:"type:blob" json:"payload"`
	PublishStatus    string     `gorm:"size:20;not null;default:PENDING;index:idx_outbox_publish" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index:idx_outbox_publish" json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:64" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	PublishedAt      *time.Time `json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:128" json:"pubsub_message_id"`
	CorrelationId    string     `gorm:"size:64" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// MaterialDispatchedEvent is the payload handed to the material/inventory collaborator.
type MaterialDispatchedEvent struct {
	ChallanId     int                      `json:"challan_id"`
	ChallanNumber string                   `json:"challan_number"`
	CustomerId    int                      `json:"customer_id"`
	DeliveredAt   time.Time                `json:"delivered_at"`
	DeliveredBy   int                      `json:"delivered_by"`
	Items         []MaterialDispatchedLine `json:"items"`
}

type MaterialDispatchedLine struct {
	OrderItemId  int    `json:"order_item_id"`
	MaterialType string `json:"material_type"`
	Quantity     string `json:"quantity"`
}

// enqueueOutbox writes the message inside the caller's transaction but does NOT publish.
func enqueueOutbox(tx *gorm.DB, referenceType string, referenceId int, eventType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := OutboxMessage{
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		EventType:     eventType,
		Payload:       b,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: utils.CorrelationIdFromContextOrNew(tx.Statement.Context),
	}
	return tx.Create(&record).Error
}

// ListOutboxMessages returns the outbox rows recorded for one document.
func ListOutboxMessages(ctx context.Context, db *gorm.DB, referenceType string, referenceId int) ([]*OutboxMessage, error) {
	var results []*OutboxMessage
	err := db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceId).
		Order("id").
		Find(&results).Error
	if err != nil {
		return nil, utils.ClassifyDBError(err)
	}
	return results, nil
}
