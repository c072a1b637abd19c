package models

import "time"

type MessageStatus string

const (
	MessageStatusQueued  MessageStatus = "queued"
	MessageStatusSending MessageStatus = "sending"
	MessageStatusSent    MessageStatus = "sent"
	MessageStatusError   MessageStatus = "error"

	// Receipt-ingestion states, written by a webhook path outside the
	// dispatch core. The drain loop never selects or writes these.
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusReplied   MessageStatus = "replied"
)

// Message is one scheduled send attempt unit tied to a batch and recipient.
// ScheduledAt is assigned by the builder, rewritten once by the jitter
// scheduler, and never moved by the dispatcher.
type Message struct {
	ID           int64         `json:"id"`
	BatchID      int64         `json:"batchId"`
	SourceListID *string       `json:"sourceListId,omitempty"`
	Recipient    string        `json:"recipient"`
	Status       MessageStatus `json:"status"`
	LastError    *string       `json:"lastError,omitempty"`
	Body         string        `json:"body"`
	CreatedAt    time.Time     `json:"createdAt"`
	ScheduledAt  time.Time     `json:"scheduledAt"`
	SentAt       *time.Time    `json:"sentAt,omitempty"`
}

// MessageInsert is the bulk-insert row shape produced by the batch builder.
type MessageInsert struct {
	BatchID      int64
	SourceListID *string
	Recipient    string
	Body         string
	ScheduledAt  time.Time
}
