package service

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
	"checkout-service/internal/pagarme"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutService creates payment links and records the checkout
type CheckoutService struct {
	links        LinkCreator
	payments     PaymentRepository
	orders       OrderRepository
	correlations CorrelationStore
	events       EventPublisher
	logger       *zap.Logger
}

// NewCheckoutService creates a new checkout service. correlations and
// events may be nil.
func NewCheckoutService(
	links LinkCreator,
	payments PaymentRepository,
	orders OrderRepository,
	correlations CorrelationStore,
	events EventPublisher,
) *CheckoutService {
	if correlations == nil {
		correlations = noopCorrelations{}
	}
	if events == nil {
		events = noopEvents{}
	}
	return &CheckoutService{
		links:        links,
		payments:     payments,
		orders:       orders,
		correlations: correlations,
		events:       events,
		logger:       util.GetLogger(),
	}
}

// SubscriptionCheckoutRequest starts a subscription checkout
type SubscriptionCheckoutRequest struct {
	Kind           string
	Email          string
	Name           string
	ExternalUserID string
	Extra          map[string]string
	Origin         string
}

// OrderCheckoutRequest starts a cart checkout
type OrderCheckoutRequest struct {
	PurchaseRef string
	Customer    models.Customer
}

// CheckoutResult is the outcome of a checkout whose link was created.
// Persisted is false when the link exists but the record could not be
// stored; PersistError then holds the cause.
type CheckoutResult struct {
	CheckoutURL   string
	LinkID        string
	Status        string
	Raw           json.RawMessage
	CorrelationID string
	AmountCents   int64
	Total         decimal.Decimal
	Persisted     bool
	PersistError  error
}

// CheckoutSubscription creates a fixed-price subscription link and stores a
// pagamentos row for it
func (s *CheckoutService) CheckoutSubscription(ctx context.Context, req SubscriptionCheckoutRequest) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CheckoutSubscription")
	defer span.End()

	email := strings.TrimSpace(req.Email)
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	if email == "" {
		util.CheckoutsFailedTotal.WithLabelValues(models.FlowSubscription, "invalid_argument").Inc()
		return nil, apperr.InvalidArgument("email é obrigatório")
	}
	plan, ok := pagarme.Plans[kind]
	if !ok {
		util.CheckoutsFailedTotal.WithLabelValues(models.FlowSubscription, "invalid_argument").Inc()
		return nil, apperr.InvalidArgument("tipo deve ser 'restaurante' ou 'membro'")
	}

	correlationID := uuid.NewString()
	metadata := make(map[string]string, len(req.Extra)+4)
	for k, v := range req.Extra {
		metadata[k] = v
	}
	metadata[models.MetaUserID] = strings.TrimSpace(req.ExternalUserID)
	metadata[models.MetaFlow] = models.FlowSubscription
	metadata[models.MetaSubscriptionKind] = kind
	metadata[models.MetaCorrelationID] = correlationID

	link, err := s.links.CreateSubscriptionLink(ctx, pagarme.SubscriptionLinkRequest{
		Kind:     kind,
		Email:    email,
		Name:     strings.TrimSpace(req.Name),
		Metadata: metadata,
	})
	if err != nil {
		util.RecordError(span, err)
		util.CheckoutsFailedTotal.WithLabelValues(models.FlowSubscription, string(apperr.KindOf(err))).Inc()
		s.logger.Error("Failed to create subscription link",
			zap.String("tipo", kind),
			zap.Error(err))
		return nil, err
	}

	util.CheckoutsCreatedTotal.WithLabelValues(models.FlowSubscription).Inc()

	origin := strings.TrimSpace(req.Origin)
	if origin == "" {
		origin = models.DefaultOrigin
	}

	record := &models.PaymentRecord{
		UserID:        models.StringPtr(strings.TrimSpace(req.ExternalUserID)),
		Email:         email,
		Kind:          kind,
		PaymentLinkID: link.ID,
		CheckoutURL:   link.URL,
		Status:        link.Status,
		Raw:           models.JSONB(link.Raw),
		Origin:        origin,
		CorrelationID: models.StringPtr(correlationID),
	}

	result := &CheckoutResult{
		CheckoutURL:   link.URL,
		LinkID:        link.ID,
		Status:        link.Status,
		Raw:           link.Raw,
		CorrelationID: correlationID,
		AmountCents:   plan.AmountCents,
		Total:         centsToMajor(plan.AmountCents),
		Persisted:     true,
	}

	if err := s.payments.InsertPayment(ctx, record); err != nil {
		result.Persisted = false
		result.PersistError = err
		util.CheckoutPersistenceDegradedTotal.WithLabelValues(models.FlowSubscription).Inc()
		s.logger.Error("Payment link created but payment record not stored",
			zap.String("payment_link_id", link.ID),
			zap.Error(err))
	}

	s.saveCorrelation(ctx, correlationID, redisclient.Correlation{
		Flow:          models.FlowSubscription,
		PaymentLinkID: link.ID,
		Kind:          kind,
	})

	s.publishCreated(ctx, &models.CheckoutCreatedEvent{
		Flow:          models.FlowSubscription,
		PaymentLinkID: link.ID,
		CorrelationID: correlationID,
		Kind:          kind,
		AmountCents:   plan.AmountCents,
		Persisted:     result.Persisted,
	})

	s.logger.Info("Subscription checkout created",
		zap.String("tipo", kind),
		zap.String("payment_link_id", link.ID),
		zap.Bool("persisted", result.Persisted))

	return result, nil
}

// CheckoutOrder sweeps the cart of a purchase reference into a payment link
// and upserts its pedidos_header row
func (s *CheckoutService) CheckoutOrder(ctx context.Context, req OrderCheckoutRequest) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CheckoutOrder")
	defer span.End()

	ref := strings.TrimSpace(req.PurchaseRef)
	customer := req.Customer
	customer.Email = strings.TrimSpace(customer.Email)
	customer.Name = strings.TrimSpace(customer.Name)
	if ref == "" {
		util.CheckoutsFailedTotal.WithLabelValues(models.FlowOrder, "invalid_argument").Inc()
		return nil, apperr.InvalidArgument("numero_compra é obrigatório")
	}
	if customer.Email == "" {
		util.CheckoutsFailedTotal.WithLabelValues(models.FlowOrder, "invalid_argument").Inc()
		return nil, apperr.InvalidArgument("email do cliente é obrigatório")
	}

	lineItems, err := s.orders.ListCartItems(ctx, ref)
	if err != nil {
		util.RecordError(span, err)
		util.CheckoutsFailedTotal.WithLabelValues(models.FlowOrder, "cart_read").Inc()
		return nil, err
	}
	if len(lineItems) == 0 {
		util.CheckoutsFailedTotal.WithLabelValues(models.FlowOrder, "empty_cart").Inc()
		return nil, apperr.InvalidArgument("carrinho vazio para numero_compra %s", ref)
	}

	items, totalCents, err := buildCart(lineItems)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues(models.FlowOrder, "invalid_price").Inc()
		return nil, err
	}

	correlationID := uuid.NewString()
	link, err := s.links.CreateOrderLink(ctx, pagarme.OrderLinkRequest{
		PurchaseRef: ref,
		Items:       items,
		Customer: pagarme.OrderCustomer{
			Name:     customer.Name,
			Email:    customer.Email,
			Document: customer.CPF,
		},
		Metadata: map[string]string{
			models.MetaFlow:          models.FlowOrder,
			models.MetaPurchaseRef:   ref,
			models.MetaCorrelationID: correlationID,
		},
	})
	if err != nil {
		util.RecordError(span, err)
		util.CheckoutsFailedTotal.WithLabelValues(models.FlowOrder, string(apperr.KindOf(err))).Inc()
		s.logger.Error("Failed to create order link",
			zap.String("numero_compra", ref),
			zap.Error(err))
		return nil, err
	}

	util.CheckoutsCreatedTotal.WithLabelValues(models.FlowOrder).Inc()

	total := centsToMajor(totalCents)
	header := &models.OrderHeader{
		PurchaseRef:         ref,
		Total:               total,
		Status:              models.OrderStatusAwaitingPayment,
		ProviderTxID:        models.StringPtr(link.ID),
		ProviderCheckoutURL: models.StringPtr(link.URL),
		CorrelationID:       models.StringPtr(correlationID),
	}
	header.SetCustomer(customer)

	result := &CheckoutResult{
		CheckoutURL:   link.URL,
		LinkID:        link.ID,
		Status:        link.Status,
		Raw:           link.Raw,
		CorrelationID: correlationID,
		AmountCents:   totalCents,
		Total:         total,
		Persisted:     true,
	}

	if err := s.orders.UpsertOrderHeader(ctx, header); err != nil {
		result.Persisted = false
		result.PersistError = err
		util.CheckoutPersistenceDegradedTotal.WithLabelValues(models.FlowOrder).Inc()
		s.logger.Error("Payment link created but order header not stored",
			zap.String("numero_compra", ref),
			zap.String("payment_link_id", link.ID),
			zap.Error(err))
	}

	s.saveCorrelation(ctx, correlationID, redisclient.Correlation{
		Flow:          models.FlowOrder,
		PaymentLinkID: link.ID,
		PurchaseRef:   ref,
	})

	s.publishCreated(ctx, &models.CheckoutCreatedEvent{
		Flow:          models.FlowOrder,
		PaymentLinkID: link.ID,
		CorrelationID: correlationID,
		PurchaseRef:   ref,
		AmountCents:   totalCents,
		Persisted:     result.Persisted,
	})

	s.logger.Info("Order checkout created",
		zap.String("numero_compra", ref),
		zap.Int("items", len(items)),
		zap.String("total", total.StringFixed(2)),
		zap.Bool("persisted", result.Persisted))

	return result, nil
}

// GetOrder returns the stored header for a purchase reference
func (s *CheckoutService) GetOrder(ctx context.Context, purchaseRef string) (*models.OrderHeader, error) {
	header, err := s.orders.GetOrderHeader(ctx, purchaseRef)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, apperr.New(apperr.KindNotFound, "pedido %s não encontrado", purchaseRef)
	}
	return header, nil
}

// ListCartItems returns the lines still in the cart of a purchase reference
func (s *CheckoutService) ListCartItems(ctx context.Context, purchaseRef string) ([]models.OrderLineItem, error) {
	return s.orders.ListCartItems(ctx, purchaseRef)
}

// GetPaymentLink reads a payment link back from the provider
func (s *CheckoutService) GetPaymentLink(ctx context.Context, id string) (*pagarme.LinkResult, error) {
	return s.links.GetPaymentLink(ctx, id)
}

// buildCart converts stored line items into provider cart entries and sums
// the total in minor units
func buildCart(lineItems []models.OrderLineItem) ([]pagarme.CartItem, int64, error) {
	items := make([]pagarme.CartItem, 0, len(lineItems))
	var total int64
	for _, li := range lineItems {
		cents, err := priceToCents(li.Price)
		if err != nil {
			return nil, 0, apperr.Wrap(apperr.KindInternal, err,
				"preço inválido para o produto %q: %q", li.ProductName, models.Deref(li.Price))
		}
		qty := parseQuantity(li.Quantity)
		items = append(items, pagarme.CartItem{
			Name:        li.ProductName,
			AmountCents: cents,
			Quantity:    qty,
		})
		if cents > (math.MaxInt64-total)/int64(qty) {
			return nil, 0, apperr.New(apperr.KindInternal,
				"total do pedido excede o limite no produto %q", li.ProductName)
		}
		total += cents * int64(qty)
	}
	return items, total, nil
}

func (s *CheckoutService) saveCorrelation(ctx context.Context, id string, corr redisclient.Correlation) {
	if err := s.correlations.SaveCorrelation(ctx, id, corr); err != nil {
		s.logger.Warn("Failed to cache correlation",
			zap.String("correlation_id", id),
			zap.Error(err))
	}
}

func (s *CheckoutService) publishCreated(ctx context.Context, event *models.CheckoutCreatedEvent) {
	if err := s.events.PublishCheckoutCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish CheckoutCreated event", zap.Error(err))
	}
}
