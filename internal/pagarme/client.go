package pagarme

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"checkout-service/internal/apperr"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Client creates hosted payment links on the Pagar.me v5 API
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
	logger    *zap.Logger
}

// NewClient creates a Pagar.me client authenticated with a secret key
func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
		logger:    util.GetLogger(),
	}
}

// BaseURL returns the API base the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// CreateSubscriptionLink creates a checkout for one of the fixed-price plans
func (c *Client) CreateSubscriptionLink(ctx context.Context, req SubscriptionLinkRequest) (*LinkResult, error) {
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	plan, ok := Plans[kind]
	if !ok {
		return nil, apperr.InvalidArgument("tipo deve ser 'restaurante' ou 'membro'")
	}

	name := req.Name
	if name == "" {
		name = req.Email
	}

	metadata := mergeMetadata(req.Metadata, map[string]string{
		"tipo_assinatura": kind,
	})

	payload := paymentLinkPayload{
		Type:            "order",
		Name:            fmt.Sprintf("%s (%s)", plan.Name, req.Email),
		IsBuilding:      false,
		PaymentSettings: defaultPaymentSettings(),
		CartSettings: cartSettings{Items: []cartItem{
			{Amount: plan.AmountCents, Name: plan.Name, DefaultQuantity: 1},
		}},
		CustomerSettings: &customerSettings{Customer: customer{Name: name, Email: req.Email}},
		Metadata:         metadata,
	}

	return c.createLink(ctx, "subscription", payload)
}

// CreateOrderLink creates a checkout for a cart of variable line items
func (c *Client) CreateOrderLink(ctx context.Context, req OrderLinkRequest) (*LinkResult, error) {
	if len(req.Items) == 0 {
		return nil, apperr.InvalidArgument("carrinho vazio")
	}

	items := make([]cartItem, 0, len(req.Items))
	for i, item := range req.Items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, apperr.InvalidArgument("item %d sem nome", i)
		}
		if item.AmountCents <= 0 {
			return nil, apperr.InvalidArgument("item %q com preço inválido", item.Name)
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		items = append(items, cartItem{Amount: item.AmountCents, Name: item.Name, DefaultQuantity: qty})
	}

	cust := customer{Name: req.Customer.Name, Email: req.Customer.Email, Document: req.Customer.Document}
	if cust.Name == "" {
		cust.Name = cust.Email
	}
	if cust.Document != "" {
		cust.Type = "individual"
	}

	payload := paymentLinkPayload{
		Type:             "order",
		Name:             fmt.Sprintf("Pedido %s", req.PurchaseRef),
		IsBuilding:       false,
		PaymentSettings:  defaultPaymentSettings(),
		CartSettings:     cartSettings{Items: items},
		CustomerSettings: &customerSettings{Customer: cust},
		Metadata: mergeMetadata(req.Metadata, map[string]string{
			"numero_compra": req.PurchaseRef,
		}),
	}

	return c.createLink(ctx, "order", payload)
}

// GetPaymentLink fetches an existing payment link by id
func (c *Client) GetPaymentLink(ctx context.Context, id string) (*LinkResult, error) {
	ctx, span := util.StartSpan(ctx, "Pagarme.GetPaymentLink")
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return nil, apperr.InvalidArgument("id do payment link é obrigatório")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("paymentlinks/"+id), nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "erro ao montar requisição para Pagar.me")
	}

	return c.do(httpReq, "get_link")
}

func (c *Client) createLink(ctx context.Context, flow string, payload paymentLinkPayload) (*LinkResult, error) {
	ctx, span := util.StartSpan(ctx, "Pagarme.CreatePaymentLink")
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "erro ao codificar payment link")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("paymentlinks"), bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "erro ao montar requisição para Pagar.me")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Creating payment link",
		zap.String("flow", flow),
		zap.Int("items", len(payload.CartSettings.Items)))

	return c.do(httpReq, "create_link_"+flow)
}

// do sends one request, without retries, and maps the outcome onto the
// network / provider / protocol error kinds.
func (c *Client) do(httpReq *http.Request, operation string) (*LinkResult, error) {
	httpReq.SetBasicAuth(c.secretKey, "")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	util.ProviderRequestLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		util.ProviderRequestsFailed.WithLabelValues(operation, string(apperr.KindNetwork)).Inc()
		return nil, apperr.Wrap(apperr.KindNetwork, err, "erro de rede ao chamar Pagar.me")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		util.ProviderRequestsFailed.WithLabelValues(operation, string(apperr.KindNetwork)).Inc()
		return nil, apperr.Wrap(apperr.KindNetwork, err, "erro ao ler resposta da Pagar.me")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		util.ProviderRequestsFailed.WithLabelValues(operation, string(apperr.KindProvider)).Inc()
		var detail any
		if err := json.Unmarshal(respBody, &detail); err != nil {
			detail = string(respBody)
		}
		c.logger.Warn("Pagar.me rejected request",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		return nil, &apperr.Error{
			Kind:       apperr.KindProvider,
			Message:    fmt.Sprintf("erro ao chamar Pagar.me (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
			StatusCode: resp.StatusCode,
			Detail:     detail,
		}
	}

	var link linkResponse
	if err := json.Unmarshal(respBody, &link); err != nil {
		util.ProviderRequestsFailed.WithLabelValues(operation, string(apperr.KindProtocol)).Inc()
		return nil, apperr.Wrap(apperr.KindProtocol, err, "resposta inválida da Pagar.me: %s", truncate(string(respBody), 512))
	}

	if link.ID == "" || link.URL == "" {
		util.ProviderRequestsFailed.WithLabelValues(operation, string(apperr.KindProtocol)).Inc()
		return nil, apperr.New(apperr.KindProtocol, "resposta da Pagar.me sem id ou url: %s", truncate(string(respBody), 512))
	}

	status := link.Status
	if status == "" {
		status = "active"
	}

	return &LinkResult{
		ID:     link.ID,
		URL:    link.URL,
		Status: status,
		Raw:    json.RawMessage(respBody),
	}, nil
}

// mergeMetadata copies extra and then applies fixed, so business keys win
func mergeMetadata(extra, fixed map[string]string) map[string]string {
	out := make(map[string]string, len(extra)+len(fixed))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range fixed {
		out[k] = v
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
