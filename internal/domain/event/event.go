// Package event defines domain events and the publishing contract.
// Events are written to a transactional outbox in the same database
// transaction as the state change, and delivered by the relay worker.
package event

import (
	"context"
	"time"

	"warelog/internal/core/id"
	"warelog/internal/core/types"
)

// Topics for domain events.
const (
	TopicDocumentCreated = "document.created"
	TopicDocumentClosed  = "document.closed"
	TopicDocumentDeleted = "document.deleted"
	TopicStockChanged    = "stock.changed"
)

// Publisher records a domain event. Implementations must join the caller's
// transaction so that events are never emitted for rolled-back changes.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// DocumentEvent is the payload for document lifecycle topics.
type DocumentEvent struct {
	DocumentID id.ID     `json:"documentId"`
	Type       string    `json:"type"`
	Number     string    `json:"number"`
	OccurredAt time.Time `json:"occurredAt"`
}

// StockChanged is the payload for the stock.changed topic.
type StockChanged struct {
	WarehouseID id.ID          `json:"warehouseId"`
	VariantID   id.ID          `json:"variantId"`
	Field       string         `json:"field"` // "quantity", "reserved", "incoming"
	Delta       types.Quantity `json:"delta"`
	Quantity    types.Quantity `json:"quantity"`
	Reserved    types.Quantity `json:"reservedQuantity"`
	Incoming    types.Quantity `json:"incomingQuantity"`
	OccurredAt  time.Time      `json:"occurredAt"`
}

// NopPublisher discards events. Useful in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, topic string, payload any) error { return nil }

var _ Publisher = NopPublisher{}
