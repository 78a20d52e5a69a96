package broker

import (
	"context"
	"time"

	"checkout-service/internal/models"

	"github.com/google/uuid"
)

// EventPublisher publishes checkout domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBase(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// eventKey groups events of one checkout on a partition
func eventKey(primary, fallback string) string {
	if primary != "" {
		return primary
	}
	return fallback
}

// PublishCheckoutCreated publishes CheckoutCreated event
func (ep *EventPublisher) PublishCheckoutCreated(ctx context.Context, event *models.CheckoutCreatedEvent) error {
	event.BaseEvent = newBase(models.EventTypeCheckoutCreated)
	key := eventKey(event.PurchaseRef, event.PaymentLinkID)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// PublishPaymentStatusChanged publishes PaymentStatusChanged event
func (ep *EventPublisher) PublishPaymentStatusChanged(ctx context.Context, event *models.PaymentStatusChangedEvent) error {
	event.BaseEvent = newBase(models.EventTypePaymentStatusChanged)
	key := eventKey(event.PaymentLinkID, event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event.EventType, event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	event.BaseEvent = newBase(models.EventTypeOrderStatusChanged)
	return ep.producer.PublishEvent(ctx, event.PurchaseRef, event.EventType, event)
}
