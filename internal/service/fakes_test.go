package service

import (
	"context"
	"errors"
	"sync"

	"checkout-service/internal/models"
	"checkout-service/internal/pagarme"
	"checkout-service/internal/redisclient"
)

var errDown = errors.New("connection refused")

type fakeLinks struct {
	subscriptionReqs []pagarme.SubscriptionLinkRequest
	orderReqs        []pagarme.OrderLinkRequest
	result           *pagarme.LinkResult
	err              error
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{result: &pagarme.LinkResult{
		ID:     "pl_123",
		URL:    "https://payment-link.pagar.me/pl_123",
		Status: "active",
		Raw:    []byte(`{"id":"pl_123","url":"https://payment-link.pagar.me/pl_123","status":"active"}`),
	}}
}

func (f *fakeLinks) CreateSubscriptionLink(_ context.Context, req pagarme.SubscriptionLinkRequest) (*pagarme.LinkResult, error) {
	f.subscriptionReqs = append(f.subscriptionReqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeLinks) CreateOrderLink(_ context.Context, req pagarme.OrderLinkRequest) (*pagarme.LinkResult, error) {
	f.orderReqs = append(f.orderReqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeLinks) GetPaymentLink(_ context.Context, id string) (*pagarme.LinkResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeLinks) calls() int {
	return len(f.subscriptionReqs) + len(f.orderReqs)
}

type paymentUpdate struct {
	by     string
	key    string
	status string
	extra  models.PaymentExtra
}

type fakePayments struct {
	inserted  []*models.PaymentRecord
	updates   []paymentUpdate
	byLink    map[string]*models.PaymentRecord
	byOrder   map[string]*models.PaymentRecord
	insertErr error
	updateErr error
	readErr   error
}

func newFakePayments() *fakePayments {
	return &fakePayments{
		byLink:  map[string]*models.PaymentRecord{},
		byOrder: map[string]*models.PaymentRecord{},
	}
}

func (f *fakePayments) InsertPayment(_ context.Context, p *models.PaymentRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	p.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, p)
	f.byLink[p.PaymentLinkID] = p
	return nil
}

func (f *fakePayments) UpdatePaymentByLinkID(_ context.Context, linkID, status string, extra models.PaymentExtra) (int64, error) {
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	f.updates = append(f.updates, paymentUpdate{by: "link", key: linkID, status: status, extra: extra})
	p, ok := f.byLink[linkID]
	if !ok {
		return 0, nil
	}
	p.Status = status
	if extra.OrderID != "" {
		p.OrderID = models.StringPtr(extra.OrderID)
		f.byOrder[extra.OrderID] = p
	}
	return 1, nil
}

func (f *fakePayments) UpdatePaymentByOrderID(_ context.Context, orderID, status string, extra models.PaymentExtra) (int64, error) {
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	f.updates = append(f.updates, paymentUpdate{by: "order", key: orderID, status: status, extra: extra})
	p, ok := f.byOrder[orderID]
	if !ok {
		return 0, nil
	}
	p.Status = status
	return 1, nil
}

func (f *fakePayments) GetPaymentByLinkID(_ context.Context, linkID string) (*models.PaymentRecord, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.byLink[linkID], nil
}

func (f *fakePayments) GetPaymentByOrderID(_ context.Context, orderID string) (*models.PaymentRecord, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.byOrder[orderID], nil
}

type fakeOrders struct {
	items       map[string][]models.OrderLineItem
	headers     map[string]*models.OrderHeader
	upserts     int
	listErr     error
	upsertErr   error
	headerErr   error
	itemsErr    error
	readErr     error
	headerCalls int
	itemCalls   int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		items:   map[string][]models.OrderLineItem{},
		headers: map[string]*models.OrderHeader{},
	}
}

func (f *fakeOrders) ListCartItems(_ context.Context, purchaseRef string) ([]models.OrderLineItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.OrderLineItem
	for _, li := range f.items[purchaseRef] {
		if li.Status == models.OrderStatusCart {
			out = append(out, li)
		}
	}
	return out, nil
}

func (f *fakeOrders) MarkLineItemsStatus(_ context.Context, purchaseRef string, status models.OrderStatus) (int64, error) {
	f.itemCalls++
	if f.itemsErr != nil {
		return 0, f.itemsErr
	}
	items := f.items[purchaseRef]
	for i := range items {
		items[i].Status = status
	}
	return int64(len(items)), nil
}

func (f *fakeOrders) UpsertOrderHeader(_ context.Context, h *models.OrderHeader) error {
	f.upserts++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	stored := *h
	f.headers[h.PurchaseRef] = &stored
	return nil
}

func (f *fakeOrders) UpdateOrderHeaderStatus(_ context.Context, purchaseRef string, status models.OrderStatus, providerTxID string) (int64, error) {
	f.headerCalls++
	if f.headerErr != nil {
		return 0, f.headerErr
	}
	h, ok := f.headers[purchaseRef]
	if !ok {
		return 0, nil
	}
	h.Status = status
	if providerTxID != "" {
		h.ProviderTxID = models.StringPtr(providerTxID)
	}
	return 1, nil
}

func (f *fakeOrders) GetOrderHeader(_ context.Context, purchaseRef string) (*models.OrderHeader, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.headers[purchaseRef], nil
}

func (f *fakeOrders) addItem(ref, name string, price, qty *string) {
	f.items[ref] = append(f.items[ref], models.OrderLineItem{
		ID:          int64(len(f.items[ref]) + 1),
		PurchaseRef: ref,
		ProductName: name,
		Price:       price,
		Quantity:    qty,
		Status:      models.OrderStatusCart,
	})
}

type auditRow struct {
	eventType string
	reason    string
	payload   []byte
}

type fakeWebhooks struct {
	events    []auditRow
	unmatched []auditRow
}

func (f *fakeWebhooks) InsertWebhookEvent(_ context.Context, eventType string, payload []byte) {
	f.events = append(f.events, auditRow{eventType: eventType, payload: payload})
}

func (f *fakeWebhooks) InsertUnmatchedEvent(_ context.Context, eventType, reason string, payload []byte) {
	f.unmatched = append(f.unmatched, auditRow{eventType: eventType, reason: reason, payload: payload})
}

type fakeCorrelations struct {
	mu      sync.Mutex
	entries map[string]redisclient.Correlation
	err     error
}

func newFakeCorrelations() *fakeCorrelations {
	return &fakeCorrelations{entries: map[string]redisclient.Correlation{}}
}

func (f *fakeCorrelations) SaveCorrelation(_ context.Context, id string, corr redisclient.Correlation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries[id] = corr
	return nil
}

func (f *fakeCorrelations) LookupCorrelation(_ context.Context, id string) (*redisclient.Correlation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	corr, ok := f.entries[id]
	if !ok {
		return nil, nil
	}
	return &corr, nil
}

type fakeEvents struct {
	created  []*models.CheckoutCreatedEvent
	payments []*models.PaymentStatusChangedEvent
	orders   []*models.OrderStatusChangedEvent
	err      error
}

func (f *fakeEvents) PublishCheckoutCreated(_ context.Context, e *models.CheckoutCreatedEvent) error {
	f.created = append(f.created, e)
	return f.err
}

func (f *fakeEvents) PublishPaymentStatusChanged(_ context.Context, e *models.PaymentStatusChangedEvent) error {
	f.payments = append(f.payments, e)
	return f.err
}

func (f *fakeEvents) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	f.orders = append(f.orders, e)
	return f.err
}

func strPtr(s string) *string { return &s }
