package service

import (
	"context"
	"errors"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// ReasonNoRoutingKey marks recognized events that name no record
const ReasonNoRoutingKey = "no_routing_key"

// StepResult reports one update performed while reconciling a webhook
type StepResult struct {
	Attempted    bool
	Key          string
	Status       string
	RowsAffected int64
	// Rejected is set when the transition table refused the new status
	Rejected bool
	Err      error
}

// ReconcileOutcome describes what a webhook delivery changed
type ReconcileOutcome struct {
	EventType  string
	Parsed     bool
	Recognized bool
	Unmatched  bool
	Payment    StepResult
	Order      StepResult
	LineItems  StepResult
}

// Failed reports whether any step hit an error
func (o ReconcileOutcome) Failed() bool {
	return o.Payment.Err != nil || o.Order.Err != nil || o.LineItems.Err != nil
}

// ReconcileService applies Pagar.me webhooks to stored payments and orders
type ReconcileService struct {
	webhooks     WebhookLog
	payments     PaymentRepository
	orders       OrderRepository
	correlations CorrelationStore
	events       EventPublisher
	logger       *zap.Logger
}

// NewReconcileService creates a new reconcile service. correlations and
// events may be nil.
func NewReconcileService(
	webhooks WebhookLog,
	payments PaymentRepository,
	orders OrderRepository,
	correlations CorrelationStore,
	events EventPublisher,
) *ReconcileService {
	if correlations == nil {
		correlations = noopCorrelations{}
	}
	if events == nil {
		events = noopEvents{}
	}
	return &ReconcileService{
		webhooks:     webhooks,
		payments:     payments,
		orders:       orders,
		correlations: correlations,
		events:       events,
		logger:       util.GetLogger(),
	}
}

type routing struct {
	linkID      string
	orderID     string
	purchaseRef string
	orderFlow   bool
}

// Reconcile records the raw webhook and, for settlement and closing events,
// updates the payment and the order it refers to. It never fails: every
// problem is logged and reported in the outcome.
func (s *ReconcileService) Reconcile(ctx context.Context, body []byte) ReconcileOutcome {
	ctx, span := util.StartSpan(ctx, "ReconcileService.Reconcile")
	defer span.End()

	ev, parsed := models.ParseProviderEvent(body)
	outcome := ReconcileOutcome{
		EventType:  ev.Type,
		Parsed:     parsed,
		Recognized: models.IsReconcilable(ev.Type),
	}

	label := ev.Type
	if !outcome.Recognized {
		label = "other"
	}
	util.WebhooksReceivedTotal.WithLabelValues(label).Inc()

	if !parsed {
		s.logger.Warn("Webhook body is not valid JSON", zap.Int("bytes", len(body)))
	}

	s.webhooks.InsertWebhookEvent(ctx, ev.Type, body)

	if !outcome.Recognized {
		s.logger.Debug("Ignoring webhook event", zap.String("event_type", ev.Type))
		return outcome
	}

	route := s.resolveRouting(ctx, ev)

	paymentRoutable := route.linkID != "" || route.orderID != ""
	orderRoutable := route.orderFlow && route.purchaseRef != ""

	if !paymentRoutable && !orderRoutable {
		outcome.Unmatched = true
		util.WebhooksUnmatchedTotal.Inc()
		s.logger.Warn("Webhook carries no routing key",
			zap.String("event_type", ev.Type),
			zap.String("event_id", ev.ID))
		s.webhooks.InsertUnmatchedEvent(ctx, ev.Type, ReasonNoRoutingKey, body)
		return outcome
	}

	if paymentRoutable {
		outcome.Payment = s.reconcilePayment(ctx, ev.Type, route)
	}

	if orderRoutable {
		outcome.Order, outcome.LineItems = s.reconcileOrder(ctx, ev.Type, route)
	}

	if outcome.Failed() {
		util.RecordError(span, errors.Join(outcome.Payment.Err, outcome.Order.Err, outcome.LineItems.Err))
	}

	s.logger.Info("Webhook reconciled",
		zap.String("event_type", ev.Type),
		zap.String("payment_link_id", route.linkID),
		zap.String("order_id", route.orderID),
		zap.String("numero_compra", route.purchaseRef),
		zap.Int64("payments_updated", outcome.Payment.RowsAffected),
		zap.Int64("items_updated", outcome.LineItems.RowsAffected))

	return outcome
}

// resolveRouting reads the routing keys echoed in metadata. When the
// correlation id is known, the cached values win over the echoed ones.
func (s *ReconcileService) resolveRouting(ctx context.Context, ev models.ProviderEvent) routing {
	meta := ev.Data.Metadata
	route := routing{
		linkID:      meta[models.MetaPaymentLinkID],
		orderID:     ev.Data.ID,
		purchaseRef: meta[models.MetaPurchaseRef],
		orderFlow:   models.IsOrderFlow(meta),
	}

	correlationID := meta[models.MetaCorrelationID]
	if correlationID == "" {
		return route
	}

	corr, err := s.correlations.LookupCorrelation(ctx, correlationID)
	if err != nil {
		s.logger.Warn("Correlation lookup failed, using echoed metadata",
			zap.String("correlation_id", correlationID),
			zap.Error(err))
		return route
	}
	if corr == nil {
		return route
	}

	if corr.PaymentLinkID != "" {
		route.linkID = corr.PaymentLinkID
	}
	if corr.PurchaseRef != "" {
		route.purchaseRef = corr.PurchaseRef
	}
	switch corr.Flow {
	case models.FlowOrder:
		route.orderFlow = true
	case models.FlowSubscription:
		route.orderFlow = false
	}
	return route
}

func (s *ReconcileService) reconcilePayment(ctx context.Context, eventType string, route routing) StepResult {
	step := StepResult{Attempted: true, Status: eventType}

	var (
		current *models.PaymentRecord
		err     error
	)
	if route.linkID != "" {
		step.Key = route.linkID
		current, err = s.payments.GetPaymentByLinkID(ctx, route.linkID)
	} else {
		step.Key = route.orderID
		current, err = s.payments.GetPaymentByOrderID(ctx, route.orderID)
	}
	if err != nil {
		// the guard needs the current status; without it the update still runs
		s.readFailed("payment_read", step.Key, err)
		current = nil
	}

	if current != nil && !models.CanTransitionPayment(current.Status, eventType) {
		step.Rejected = true
		util.TransitionsRejectedTotal.WithLabelValues("payment").Inc()
		s.logger.Warn("Payment status transition rejected",
			zap.String("key", step.Key),
			zap.String("from", current.Status),
			zap.String("to", eventType))
		return step
	}

	if route.linkID != "" {
		step.RowsAffected, err = s.payments.UpdatePaymentByLinkID(ctx, route.linkID, eventType,
			models.PaymentExtra{OrderID: route.orderID})
	} else {
		step.RowsAffected, err = s.payments.UpdatePaymentByOrderID(ctx, route.orderID, eventType,
			models.PaymentExtra{})
	}
	if err != nil {
		return s.failStep(step, "payment_update", err)
	}

	if step.RowsAffected > 0 {
		if err := s.events.PublishPaymentStatusChanged(ctx, &models.PaymentStatusChangedEvent{
			PaymentLinkID: route.linkID,
			OrderID:       route.orderID,
			Status:        eventType,
		}); err != nil {
			s.logger.Error("Failed to publish PaymentStatusChanged event", zap.Error(err))
		}
	}
	return step
}

// reconcileOrder moves the header and every line item of the purchase to the
// status derived from the event. The two updates are independent.
func (s *ReconcileService) reconcileOrder(ctx context.Context, eventType string, route routing) (StepResult, StepResult) {
	target := models.OrderStatusForEvent(eventType)
	header := StepResult{Attempted: true, Key: route.purchaseRef, Status: string(target)}
	items := StepResult{Key: route.purchaseRef, Status: string(target)}

	current, err := s.orders.GetOrderHeader(ctx, route.purchaseRef)
	if err != nil {
		s.readFailed("order_read", route.purchaseRef, err)
		current = nil
	}

	if current != nil && !current.Status.CanTransitionTo(target) {
		header.Rejected = true
		items.Rejected = true
		util.TransitionsRejectedTotal.WithLabelValues("order").Inc()
		s.logger.Warn("Order status transition rejected",
			zap.String("numero_compra", route.purchaseRef),
			zap.String("from", string(current.Status)),
			zap.String("to", string(target)))
		return header, items
	}

	header.RowsAffected, err = s.orders.UpdateOrderHeaderStatus(ctx, route.purchaseRef, target, route.orderID)
	if err != nil {
		header = s.failStep(header, "order_update", err)
	}

	items.Attempted = true
	items.RowsAffected, err = s.orders.MarkLineItemsStatus(ctx, route.purchaseRef, target)
	if err != nil {
		items = s.failStep(items, "line_items_update", err)
	}

	if header.RowsAffected > 0 || items.RowsAffected > 0 {
		if err := s.events.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
			PurchaseRef: route.purchaseRef,
			Status:      target,
			OrderID:     route.orderID,
		}); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
		}
	}
	return header, items
}

func (s *ReconcileService) failStep(step StepResult, name string, err error) StepResult {
	step.Err = err
	util.ReconcileFailuresTotal.WithLabelValues(name).Inc()
	s.logger.Error("Webhook reconciliation step failed",
		zap.String("step", name),
		zap.String("key", step.Key),
		zap.Error(err))
	return step
}

func (s *ReconcileService) readFailed(name, key string, err error) {
	util.ReconcileFailuresTotal.WithLabelValues(name).Inc()
	s.logger.Warn("Current status unavailable, updating without transition check",
		zap.String("step", name),
		zap.String("key", key),
		zap.Error(err))
}
