package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusForEvent(t *testing.T) {
	tests := []struct {
		event string
		want  OrderStatus
	}{
		{EventOrderPaid, OrderStatusPaid},
		{EventChargePaid, OrderStatusPaid},
		{EventCheckoutClosed, OrderStatusCancelled},
		{"charge.refunded", OrderStatusUnknown},
		{"", OrderStatusUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, OrderStatusForEvent(tt.event), tt.event)
	}
}

func TestIsReconcilable(t *testing.T) {
	assert.True(t, IsReconcilable("order.paid"))
	assert.True(t, IsReconcilable("charge.paid"))
	assert.True(t, IsReconcilable("checkout.closed"))
	assert.False(t, IsReconcilable("order.created"))
	assert.False(t, IsReconcilable(""))
}

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusCart, OrderStatusPaid, true},
		{OrderStatusAwaitingPayment, OrderStatusPaid, true},
		{OrderStatusAwaitingPayment, OrderStatusCancelled, true},
		{OrderStatusUnknown, OrderStatusCancelled, true},
		{"", OrderStatusPaid, true},
		{OrderStatusPaid, OrderStatusPaid, true},
		{OrderStatusPaid, OrderStatusCancelled, false},
		{OrderStatusPaid, OrderStatusUnknown, false},
		{OrderStatusCancelled, OrderStatusPaid, true},
		{OrderStatusCancelled, OrderStatusAwaitingPayment, false},
		{OrderStatusAwaitingPayment, OrderStatus("shipped"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestCanTransitionPayment(t *testing.T) {
	assert.True(t, CanTransitionPayment(PaymentStatusActive, EventOrderPaid))
	assert.True(t, CanTransitionPayment(PaymentStatusActive, EventCheckoutClosed))
	assert.True(t, CanTransitionPayment(EventOrderPaid, EventChargePaid))
	assert.False(t, CanTransitionPayment(EventOrderPaid, EventCheckoutClosed))
	assert.False(t, CanTransitionPayment(EventChargePaid, ""))
	assert.True(t, CanTransitionPayment(EventCheckoutClosed, EventOrderPaid))
}

func TestIsOrderFlow(t *testing.T) {
	assert.True(t, IsOrderFlow(map[string]string{MetaFlow: FlowOrder}))
	assert.True(t, IsOrderFlow(map[string]string{MetaLegacyFlow: "pedido"}))
	assert.False(t, IsOrderFlow(map[string]string{MetaFlow: FlowSubscription}))
	assert.False(t, IsOrderFlow(nil))
}
