package service

import (
	"context"

	"checkout-service/internal/models"
	"checkout-service/internal/pagarme"
	"checkout-service/internal/redisclient"
)

// LinkCreator creates and reads hosted payment links
type LinkCreator interface {
	CreateSubscriptionLink(ctx context.Context, req pagarme.SubscriptionLinkRequest) (*pagarme.LinkResult, error)
	CreateOrderLink(ctx context.Context, req pagarme.OrderLinkRequest) (*pagarme.LinkResult, error)
	GetPaymentLink(ctx context.Context, id string) (*pagarme.LinkResult, error)
}

// PaymentRepository persists subscription payments
type PaymentRepository interface {
	InsertPayment(ctx context.Context, p *models.PaymentRecord) error
	UpdatePaymentByLinkID(ctx context.Context, linkID, status string, extra models.PaymentExtra) (int64, error)
	UpdatePaymentByOrderID(ctx context.Context, orderID, status string, extra models.PaymentExtra) (int64, error)
	GetPaymentByLinkID(ctx context.Context, linkID string) (*models.PaymentRecord, error)
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.PaymentRecord, error)
}

// OrderRepository persists cart orders
type OrderRepository interface {
	ListCartItems(ctx context.Context, purchaseRef string) ([]models.OrderLineItem, error)
	MarkLineItemsStatus(ctx context.Context, purchaseRef string, status models.OrderStatus) (int64, error)
	UpsertOrderHeader(ctx context.Context, h *models.OrderHeader) error
	UpdateOrderHeaderStatus(ctx context.Context, purchaseRef string, status models.OrderStatus, providerTxID string) (int64, error)
	GetOrderHeader(ctx context.Context, purchaseRef string) (*models.OrderHeader, error)
}

// WebhookLog is the append-only webhook audit trail. Its methods never fail.
type WebhookLog interface {
	InsertWebhookEvent(ctx context.Context, eventType string, payload []byte)
	InsertUnmatchedEvent(ctx context.Context, eventType, reason string, payload []byte)
}

// CorrelationStore keeps checkout routing data keyed by correlation id
type CorrelationStore interface {
	SaveCorrelation(ctx context.Context, id string, corr redisclient.Correlation) error
	LookupCorrelation(ctx context.Context, id string) (*redisclient.Correlation, error)
}

// EventPublisher emits checkout domain events
type EventPublisher interface {
	PublishCheckoutCreated(ctx context.Context, event *models.CheckoutCreatedEvent) error
	PublishPaymentStatusChanged(ctx context.Context, event *models.PaymentStatusChangedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

type noopCorrelations struct{}

func (noopCorrelations) SaveCorrelation(context.Context, string, redisclient.Correlation) error {
	return nil
}

func (noopCorrelations) LookupCorrelation(context.Context, string) (*redisclient.Correlation, error) {
	return nil, nil
}

type noopEvents struct{}

func (noopEvents) PublishCheckoutCreated(context.Context, *models.CheckoutCreatedEvent) error {
	return nil
}

func (noopEvents) PublishPaymentStatusChanged(context.Context, *models.PaymentStatusChangedEvent) error {
	return nil
}

func (noopEvents) PublishOrderStatusChanged(context.Context, *models.OrderStatusChangedEvent) error {
	return nil
}
