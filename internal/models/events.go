package models

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// Event types published to the checkout events topic
const (
	EventTypeCheckoutCreated      = "CHECKOUT_CREATED"
	EventTypePaymentStatusChanged = "PAYMENT_STATUS_CHANGED"
	EventTypeOrderStatusChanged   = "ORDER_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutCreatedEvent published after a payment link is created
type CheckoutCreatedEvent struct {
	BaseEvent
	Flow          string `json:"flow"`
	PaymentLinkID string `json:"payment_link_id"`
	CorrelationID string `json:"correlation_id"`
	PurchaseRef   string `json:"numero_compra,omitempty"`
	Kind          string `json:"tipo_assinatura,omitempty"`
	AmountCents   int64  `json:"amount_cents"`
	Persisted     bool   `json:"persisted"`
}

// PaymentStatusChangedEvent published when a webhook updates pagamentos
type PaymentStatusChangedEvent struct {
	BaseEvent
	PaymentLinkID string `json:"payment_link_id,omitempty"`
	OrderID       string `json:"order_id,omitempty"`
	Status        string `json:"status"`
}

// OrderStatusChangedEvent published when a webhook updates an order
type OrderStatusChangedEvent struct {
	BaseEvent
	PurchaseRef string      `json:"numero_compra"`
	Status      OrderStatus `json:"status"`
	OrderID     string      `json:"order_id,omitempty"`
}

// ProviderEvent is the Pagar.me webhook envelope. Every field is optional.
type ProviderEvent struct {
	ID   string            `json:"id"`
	Type string            `json:"type"`
	Data ProviderEventData `json:"data"`
}

type ProviderEventData struct {
	ID       string   `json:"id"`
	Code     string   `json:"code"`
	Status   string   `json:"status"`
	Metadata Metadata `json:"metadata"`
}

// Metadata is the string map round-tripped through Pagar.me. Values of
// other JSON types are kept in their textual form.
type Metadata map[string]string

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		// metadata of an unexpected shape is treated as absent
		*m = Metadata{}
		return nil
	}
	out := make(Metadata, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			b, _ := json.Marshal(val)
			out[k] = string(b)
		}
	}
	*m = out
	return nil
}

// ParseProviderEvent decodes a webhook body. A body that is not valid JSON
// yields an empty event and ok=false.
func ParseProviderEvent(body []byte) (ProviderEvent, bool) {
	var ev ProviderEvent
	if len(body) == 0 {
		return ev, false
	}
	if err := json.Unmarshal(body, &ev); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// the remaining fields were still decoded
			return ev, true
		}
		return ProviderEvent{}, false
	}
	return ev, true
}
