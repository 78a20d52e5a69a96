package pagarme

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"checkout-service/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	method string
	path   string
	user   string
	pass   string
	body   map[string]any
}

func newTestServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest, *int32) {
	t.Helper()
	captured := &capturedRequest{}
	var hits int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.user, captured.pass, _ = r.BasicAuth()
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &captured.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, captured, &hits
}

func cartItems(t *testing.T, body map[string]any) []map[string]any {
	t.Helper()
	cart, ok := body["cart_settings"].(map[string]any)
	require.True(t, ok)
	rawItems, ok := cart["items"].([]any)
	require.True(t, ok)
	items := make([]map[string]any, 0, len(rawItems))
	for _, it := range rawItems {
		items = append(items, it.(map[string]any))
	}
	return items
}

func TestCreateSubscriptionLinkPlans(t *testing.T) {
	tests := []struct {
		kind   string
		amount float64
		name   string
	}{
		{"restaurante", 10000, "Assinatura Restaurante – Guia Cerrado"},
		{"membro", 2999, "Assinatura Membro – Guia Cerrado"},
		{"MEMBRO", 2999, "Assinatura Membro – Guia Cerrado"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			srv, captured, _ := newTestServer(t, http.StatusOK,
				`{"id":"pl_abc","url":"https://payment-link.pagar.me/pl_abc","status":"active"}`)
			c := NewClient(srv.URL+"/core/v5/", "sk_test", time.Second)

			res, err := c.CreateSubscriptionLink(context.Background(), SubscriptionLinkRequest{
				Kind:     tt.kind,
				Email:    "ana@example.com",
				Metadata: map[string]string{"user_id": "u1", "tipo_assinatura": "spoofed"},
			})
			require.NoError(t, err)

			assert.Equal(t, "pl_abc", res.ID)
			assert.Equal(t, "https://payment-link.pagar.me/pl_abc", res.URL)
			assert.Equal(t, "active", res.Status)
			assert.JSONEq(t, `{"id":"pl_abc","url":"https://payment-link.pagar.me/pl_abc","status":"active"}`, string(res.Raw))

			assert.Equal(t, http.MethodPost, captured.method)
			assert.Equal(t, "/core/v5/paymentlinks", captured.path)
			assert.Equal(t, "sk_test", captured.user)
			assert.Equal(t, "", captured.pass)

			body := captured.body
			assert.Equal(t, "order", body["type"])
			assert.Equal(t, false, body["is_building"])
			assert.Equal(t, tt.name+" (ana@example.com)", body["name"])

			items := cartItems(t, body)
			require.Len(t, items, 1)
			assert.Equal(t, tt.amount, items[0]["amount"])
			assert.Equal(t, tt.name, items[0]["name"])
			assert.Equal(t, float64(1), items[0]["default_quantity"])

			settings := body["payment_settings"].(map[string]any)
			assert.ElementsMatch(t, []any{"credit_card", "boleto", "pix"}, settings["accepted_payment_methods"])
			card := settings["credit_card_settings"].(map[string]any)
			assert.Equal(t, "auth_and_capture", card["operation_type"])

			customer := body["customer_settings"].(map[string]any)["customer"].(map[string]any)
			assert.Equal(t, "ana@example.com", customer["name"])
			assert.Equal(t, "ana@example.com", customer["email"])

			meta := body["metadata"].(map[string]any)
			assert.Equal(t, "u1", meta["user_id"])
			assert.Equal(t, strings.ToLower(tt.kind), meta["tipo_assinatura"])
		})
	}
}

func TestCreateSubscriptionLinkUnknownKind(t *testing.T) {
	srv, _, hits := newTestServer(t, http.StatusOK, `{}`)
	c := NewClient(srv.URL, "sk_test", time.Second)

	for _, kind := range []string{"", "vip", "membros"} {
		_, err := c.CreateSubscriptionLink(context.Background(), SubscriptionLinkRequest{Kind: kind, Email: "a@b.c"})
		require.Error(t, err)
		assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	}
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestCreateOrderLink(t *testing.T) {
	srv, captured, _ := newTestServer(t, http.StatusOK, `{"id":"pl_order","url":"https://pay/pl_order"}`)
	c := NewClient(srv.URL, "sk_test", time.Second)

	res, err := c.CreateOrderLink(context.Background(), OrderLinkRequest{
		PurchaseRef: "GC-1700000000",
		Items: []CartItem{
			{Name: "A", AmountCents: 500, Quantity: 2},
			{Name: "B", AmountCents: 1000, Quantity: 0},
		},
		Customer: OrderCustomer{Email: "ana@example.com", Document: "12345678909"},
		Metadata: map[string]string{"flow": "order", "numero_compra": "spoofed"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pl_order", res.ID)
	assert.Equal(t, "active", res.Status)

	items := cartItems(t, captured.body)
	require.Len(t, items, 2)
	var total float64
	for _, it := range items {
		total += it["amount"].(float64) * it["default_quantity"].(float64)
	}
	assert.Equal(t, float64(2000), total)
	assert.Equal(t, float64(1), items[1]["default_quantity"])

	meta := captured.body["metadata"].(map[string]any)
	assert.Equal(t, "order", meta["flow"])
	assert.Equal(t, "GC-1700000000", meta["numero_compra"])

	customer := captured.body["customer_settings"].(map[string]any)["customer"].(map[string]any)
	assert.Equal(t, "12345678909", customer["document"])
	assert.Equal(t, "individual", customer["type"])
}

func TestCreateOrderLinkInvalidItems(t *testing.T) {
	srv, _, hits := newTestServer(t, http.StatusOK, `{}`)
	c := NewClient(srv.URL, "sk_test", time.Second)

	cases := map[string][]CartItem{
		"empty":     nil,
		"no name":   {{Name: " ", AmountCents: 100, Quantity: 1}},
		"no amount": {{Name: "A", AmountCents: 0, Quantity: 1}},
	}
	for name, items := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.CreateOrderLink(context.Background(), OrderLinkRequest{PurchaseRef: "GC-1", Items: items})
			require.Error(t, err)
			assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
		})
	}
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestProviderErrorResponse(t *testing.T) {
	srv, _, _ := newTestServer(t, http.StatusUnprocessableEntity, `{"message":"The request is invalid."}`)
	c := NewClient(srv.URL, "sk_test", time.Second)

	_, err := c.CreateSubscriptionLink(context.Background(), SubscriptionLinkRequest{Kind: "membro", Email: "a@b.c"})
	require.Error(t, err)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.KindProvider, appErr.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.StatusCode)
	assert.Equal(t, map[string]any{"message": "The request is invalid."}, appErr.Detail)
	assert.Equal(t, http.StatusBadGateway, apperr.HTTPStatus(err))
}

func TestProviderErrorTextBody(t *testing.T) {
	srv, _, _ := newTestServer(t, http.StatusInternalServerError, `upstream exploded`)
	c := NewClient(srv.URL, "sk_test", time.Second)

	_, err := c.CreateSubscriptionLink(context.Background(), SubscriptionLinkRequest{Kind: "membro", Email: "a@b.c"})

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "upstream exploded", appErr.Detail)
	assert.Contains(t, err.Error(), "500")
}

func TestProtocolError(t *testing.T) {
	srv, _, _ := newTestServer(t, http.StatusOK, `<html>ok</html>`)
	c := NewClient(srv.URL, "sk_test", time.Second)

	_, err := c.CreateSubscriptionLink(context.Background(), SubscriptionLinkRequest{Kind: "membro", Email: "a@b.c"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindProtocol, apperr.KindOf(err))
}

func TestProtocolErrorMissingLink(t *testing.T) {
	for _, body := range []string{`{}`, `null`, `{"foo":1}`, `{"id":"pl_1"}`, `{"url":"https://pay/pl_1"}`} {
		t.Run(body, func(t *testing.T) {
			srv, _, _ := newTestServer(t, http.StatusOK, body)
			c := NewClient(srv.URL, "sk_test", time.Second)

			res, err := c.CreateSubscriptionLink(context.Background(), SubscriptionLinkRequest{Kind: "membro", Email: "a@b.c"})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, apperr.KindProtocol, apperr.KindOf(err))
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv, _, _ := newTestServer(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	c := NewClient(url, "sk_test", time.Second)
	_, err := c.CreateSubscriptionLink(context.Background(), SubscriptionLinkRequest{Kind: "membro", Email: "a@b.c"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}

func TestGetPaymentLink(t *testing.T) {
	srv, captured, _ := newTestServer(t, http.StatusOK, `{"id":"pl_1","url":"https://pay/pl_1","status":"canceled"}`)
	c := NewClient(srv.URL, "sk_test", time.Second)

	res, err := c.GetPaymentLink(context.Background(), "pl_1")
	require.NoError(t, err)
	assert.Equal(t, "canceled", res.Status)
	assert.Equal(t, http.MethodGet, captured.method)
	assert.Equal(t, "/paymentlinks/pl_1", captured.path)

	_, err = c.GetPaymentLink(context.Background(), "")
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	assert.Equal(t, "id do payment link é obrigatório", err.Error())
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("https://sdx-api.pagar.me/core/v5/", "sk", 0)
	assert.Equal(t, "https://sdx-api.pagar.me/core/v5", c.BaseURL())
	assert.Equal(t, defaultTimeout, c.http.Timeout)
	assert.Equal(t, "https://sdx-api.pagar.me/core/v5/paymentlinks", c.url("/paymentlinks"))
}
