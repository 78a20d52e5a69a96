package models

// OrderStatus is the status shared by pedidos_header and pedidos rows
type OrderStatus string

const (
	OrderStatusCart            OrderStatus = "carrinho"
	OrderStatusAwaitingPayment OrderStatus = "aguardando_pagamento"
	OrderStatusPaid            OrderStatus = "pago"
	OrderStatusCancelled       OrderStatus = "cancelado"
	OrderStatusUnknown         OrderStatus = "desconhecido"
)

// Pagar.me webhook event types that settle or close a checkout
const (
	EventOrderPaid      = "order.paid"
	EventChargePaid     = "charge.paid"
	EventCheckoutClosed = "checkout.closed"
)

// Payment statuses stored in pagamentos.pagarme_status besides event types
const (
	PaymentStatusActive = "active"
	PaymentStatusPaid   = "paid"
)

// IsReconcilable reports whether a webhook event type mutates records.
func IsReconcilable(eventType string) bool {
	switch eventType {
	case EventOrderPaid, EventChargePaid, EventCheckoutClosed:
		return true
	}
	return false
}

// OrderStatusForEvent derives the order status a webhook event leads to.
func OrderStatusForEvent(eventType string) OrderStatus {
	switch eventType {
	case EventOrderPaid, EventChargePaid:
		return OrderStatusPaid
	case EventCheckoutClosed:
		return OrderStatusCancelled
	default:
		return OrderStatusUnknown
	}
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCart, OrderStatusAwaitingPayment, OrderStatusPaid, OrderStatusCancelled, OrderStatusUnknown:
		return true
	}
	return false
}

// CanTransitionTo is the order transition table. Repeating the current
// status is always allowed so provider retries converge.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case OrderStatusCart, OrderStatusAwaitingPayment, OrderStatusUnknown, "":
		return true
	case OrderStatusCancelled:
		// a boleto or pix can settle after the hosted checkout closed
		return next == OrderStatusPaid
	default:
		return false
	}
}

// IsSettledPayment reports whether a pagarme_status value means the money arrived.
func IsSettledPayment(status string) bool {
	switch status {
	case EventOrderPaid, EventChargePaid, PaymentStatusPaid:
		return true
	}
	return false
}

// CanTransitionPayment guards pagarme_status overwrites: once settled, only
// another settled status may replace it.
func CanTransitionPayment(current, next string) bool {
	if next == "" {
		return false
	}
	if IsSettledPayment(current) {
		return IsSettledPayment(next)
	}
	return true
}
