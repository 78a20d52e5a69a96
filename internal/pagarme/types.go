package pagarme

import "encoding/json"

// Plan is a fixed-price subscription tier
type Plan struct {
	Name        string
	AmountCents int64
}

// Plans maps a subscription kind to its price and display name
var Plans = map[string]Plan{
	"restaurante": {Name: "Assinatura Restaurante – Guia Cerrado", AmountCents: 10000},
	"membro":      {Name: "Assinatura Membro – Guia Cerrado", AmountCents: 2999},
}

// SubscriptionLinkRequest describes a subscription checkout
type SubscriptionLinkRequest struct {
	Kind     string
	Email    string
	Name     string
	Metadata map[string]string
}

// CartItem is one cart entry in minor units
type CartItem struct {
	Name        string
	AmountCents int64
	Quantity    int
}

// OrderCustomer is the buyer sent along with an order link
type OrderCustomer struct {
	Name     string
	Email    string
	Document string
}

// OrderLinkRequest describes a cart checkout
type OrderLinkRequest struct {
	PurchaseRef string
	Items       []CartItem
	Customer    OrderCustomer
	Metadata    map[string]string
}

// LinkResult is the normalized provider response
type LinkResult struct {
	ID     string          `json:"id"`
	URL    string          `json:"url"`
	Status string          `json:"status"`
	Raw    json.RawMessage `json:"raw"`
}

type paymentLinkPayload struct {
	Type             string            `json:"type"`
	Name             string            `json:"name"`
	IsBuilding       bool              `json:"is_building"`
	PaymentSettings  paymentSettings   `json:"payment_settings"`
	CartSettings     cartSettings      `json:"cart_settings"`
	CustomerSettings *customerSettings `json:"customer_settings,omitempty"`
	Metadata         map[string]string `json:"metadata"`
}

type paymentSettings struct {
	AcceptedPaymentMethods []string           `json:"accepted_payment_methods"`
	CreditCardSettings     creditCardSettings `json:"credit_card_settings"`
}

type creditCardSettings struct {
	OperationType     string            `json:"operation_type"`
	InstallmentsSetup installmentsSetup `json:"installments_setup"`
}

type installmentsSetup struct {
	InterestType string `json:"interest_type"`
}

type cartSettings struct {
	Items []cartItem `json:"items"`
}

type cartItem struct {
	Amount          int64  `json:"amount"`
	Name            string `json:"name"`
	DefaultQuantity int    `json:"default_quantity"`
}

type customerSettings struct {
	Customer customer `json:"customer"`
}

type customer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document,omitempty"`
	Type     string `json:"type,omitempty"`
}

type linkResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

func defaultPaymentSettings() paymentSettings {
	return paymentSettings{
		AcceptedPaymentMethods: []string{"credit_card", "boleto", "pix"},
		CreditCardSettings: creditCardSettings{
			OperationType:     "auth_and_capture",
			InstallmentsSetup: installmentsSetup{InterestType: "simple"},
		},
	}
}
