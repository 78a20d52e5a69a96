package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Subscription kinds
const (
	SubscriptionMember     = "membro"
	SubscriptionRestaurant = "restaurante"
)

// Metadata keys sent to Pagar.me on link creation and echoed back in webhooks
const (
	MetaFlow             = "flow"
	MetaSubscriptionKind = "tipo_assinatura"
	MetaPurchaseRef      = "numero_compra"
	MetaUserID           = "user_id"
	MetaCorrelationID    = "correlation_id"
	MetaPaymentLinkID    = "payment_link_id"
	MetaLegacyFlow       = "tipo"
)

// Flow discriminator values
const (
	FlowSubscription = "subscription"
	FlowOrder        = "order"
	legacyFlowOrder  = "pedido"
)

// IsOrderFlow reports whether webhook metadata marks a cart order.
func IsOrderFlow(meta map[string]string) bool {
	return meta[MetaFlow] == FlowOrder || meta[MetaLegacyFlow] == legacyFlowOrder
}

const DefaultOrigin = "checkout_site"

// PaymentRecord is one subscription checkout attempt (table pagamentos)
type PaymentRecord struct {
	ID            int64     `db:"id" json:"id"`
	UserID        *string   `db:"user_id" json:"user_id,omitempty"`
	Email         string    `db:"email" json:"email"`
	Kind          string    `db:"tipo" json:"tipo"`
	PaymentLinkID string    `db:"payment_link_id" json:"payment_link_id"`
	CheckoutURL   string    `db:"checkout_url" json:"checkout_url"`
	Status        string    `db:"pagarme_status" json:"pagarme_status"`
	Raw           JSONB     `db:"pagarme_raw" json:"pagarme_raw"`
	Origin        string    `db:"origem" json:"origem"`
	OrderID       *string   `db:"order_id" json:"order_id,omitempty"`
	CorrelationID *string   `db:"correlation_id" json:"correlation_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// PaymentExtra holds the optional columns stamped alongside a status update
type PaymentExtra struct {
	OrderID string
}

// Customer is the denormalized customer snapshot taken at checkout
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	CPF     string `json:"cpf,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// OrderHeader is one cart-based purchase (table pedidos_header)
type OrderHeader struct {
	PurchaseRef         string          `db:"numero_compra" json:"numero_compra"`
	Total               decimal.Decimal `db:"total" json:"total"`
	Status              OrderStatus     `db:"status" json:"status"`
	ProviderTxID        *string         `db:"pagarme_transaction_id" json:"pagarme_transaction_id,omitempty"`
	ProviderCheckoutURL *string         `db:"pagarme_checkout_url" json:"pagarme_checkout_url,omitempty"`
	CustomerName        *string         `db:"cliente_nome" json:"cliente_nome,omitempty"`
	CustomerEmail       *string         `db:"cliente_email" json:"cliente_email,omitempty"`
	CustomerCPF         *string         `db:"cliente_cpf" json:"cliente_cpf,omitempty"`
	CustomerPhone       *string         `db:"cliente_telefone" json:"cliente_telefone,omitempty"`
	CustomerAddress     *string         `db:"cliente_endereco" json:"cliente_endereco,omitempty"`
	CorrelationID       *string         `db:"correlation_id" json:"correlation_id,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// SetCustomer copies a customer snapshot into the header columns
func (h *OrderHeader) SetCustomer(c Customer) {
	h.CustomerName = StringPtr(c.Name)
	h.CustomerEmail = StringPtr(c.Email)
	h.CustomerCPF = StringPtr(c.CPF)
	h.CustomerPhone = StringPtr(c.Phone)
	h.CustomerAddress = StringPtr(c.Address)
}

// OrderLineItem is one cart line (table pedidos). Price and quantity are
// read as text because the cart UI owns those columns.
type OrderLineItem struct {
	ID          int64       `db:"id" json:"id"`
	PurchaseRef string      `db:"numero_compra" json:"numero_compra"`
	ProductName string      `db:"nome_produto" json:"nome_produto"`
	Price       *string     `db:"preco" json:"preco"`
	Quantity    *string     `db:"quantidade" json:"quantidade"`
	Status      OrderStatus `db:"status" json:"status"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// StringPtr returns nil for the empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or ""
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// JSONB is a raw JSON document stored in a jsonb column.
type JSONB json.RawMessage

// Value sends the document as text; lib/pq would encode []byte as bytea.
func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	return string(j), nil
}

func (j *JSONB) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONB(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", src)
	}
	return nil
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(bytes.TrimSpace(j)) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}
