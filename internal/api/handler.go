package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
	"checkout-service/internal/pagarme"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// Checkouts is the checkout use-case surface the handlers call
type Checkouts interface {
	CheckoutSubscription(ctx context.Context, req service.SubscriptionCheckoutRequest) (*service.CheckoutResult, error)
	CheckoutOrder(ctx context.Context, req service.OrderCheckoutRequest) (*service.CheckoutResult, error)
	GetOrder(ctx context.Context, purchaseRef string) (*models.OrderHeader, error)
	ListCartItems(ctx context.Context, purchaseRef string) ([]models.OrderLineItem, error)
	GetPaymentLink(ctx context.Context, id string) (*pagarme.LinkResult, error)
}

// Reconciler applies inbound provider webhooks
type Reconciler interface {
	Reconcile(ctx context.Context, body []byte) service.ReconcileOutcome
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the values echoed by the health and CORS handlers
type Options struct {
	Environment     string
	ProviderBaseURL string
	FrontendOrigin  string
}

// Handler contains HTTP handlers
type Handler struct {
	checkouts  Checkouts
	reconciler Reconciler
	db         Pinger
	cache      Pinger
	opts       Options
	logger     *zap.Logger
}

// NewHandler creates a new HTTP handler. cache may be nil when the
// correlation cache is disabled.
func NewHandler(checkouts Checkouts, reconciler Reconciler, db Pinger, cache Pinger, opts Options) *Handler {
	if opts.FrontendOrigin == "" {
		opts.FrontendOrigin = "*"
	}
	return &Handler{
		checkouts:  checkouts,
		reconciler: reconciler,
		db:         db,
		cache:      cache,
		opts:       opts,
		logger:     util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(corsMiddleware(h.opts.FrontendOrigin))
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/checkout/subscription", h.createSubscriptionCheckout(false))
	router.POST("/checkout/order", h.createOrderCheckout)
	router.GET("/orders/:purchaseRef", h.getOrder)
	router.GET("/orders/:purchaseRef/items", h.listCartItems)
	router.GET("/payment-links/:id", h.getPaymentLink)
	router.POST("/webhook/payment-provider", h.receiveWebhook)

	legacy := router.Group("/api")
	{
		legacy.GET("/health", h.healthCheck)
		legacy.POST("/criar-checkout", h.createSubscriptionCheckout(true))
	}
	router.POST("/webhook/pagarme", h.receiveWebhook)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"environment":     h.opts.Environment,
		"providerBaseUrl": h.opts.ProviderBaseURL,
	})
}

// readinessCheck reports ready once the database answers. The correlation
// cache is optional, so its state is reported without failing the check.
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	cache := "disabled"
	if h.cache != nil {
		cache = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			cache = "unavailable"
			h.logger.Warn("Correlation cache unreachable", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"cache":  cache,
		"time":   time.Now().Unix(),
	})
}

// subscriptionRequest accepts both the current and the legacy field names
type subscriptionRequest struct {
	Kind           string          `json:"kind"`
	Email          string          `json:"email"`
	Name           string          `json:"name"`
	ExternalUserID string          `json:"externalUserId"`
	Extra          models.Metadata `json:"extra"`
	Origin         string          `json:"origin"`

	Tipo   string `json:"tipo"`
	Nome   string `json:"nome"`
	UserID any    `json:"user_id"`
	Origem string `json:"origem"`
}

func (r subscriptionRequest) toService() service.SubscriptionCheckoutRequest {
	req := service.SubscriptionCheckoutRequest{
		Kind:           firstNonEmpty(r.Kind, r.Tipo),
		Email:          r.Email,
		Name:           firstNonEmpty(r.Name, r.Nome),
		ExternalUserID: r.ExternalUserID,
		Extra:          r.Extra,
		Origin:         firstNonEmpty(r.Origin, r.Origem),
	}
	if req.ExternalUserID == "" && r.UserID != nil {
		switch v := r.UserID.(type) {
		case string:
			req.ExternalUserID = v
		case float64:
			req.ExternalUserID = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return req
}

// createSubscriptionCheckout handles subscription checkouts. The legacy
// route also answers with the snake_case keys its frontend reads.
func (h *Handler) createSubscriptionCheckout(legacy bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "JSON inválido"})
			return
		}

		res, err := h.checkouts.CheckoutSubscription(c.Request.Context(), req.toService())
		if err != nil {
			h.respondError(c, err)
			return
		}

		body := gin.H{
			"ok":          true,
			"checkoutUrl": res.CheckoutURL,
			"linkId":      res.LinkID,
			"raw":         res.Raw,
			"persisted":   res.Persisted,
		}
		if legacy {
			body["checkout_url"] = res.CheckoutURL
			body["payment_link_id"] = res.LinkID
		}
		c.JSON(http.StatusOK, body)
	}
}

type customerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	CPF     string `json:"cpf"`
	Phone   string `json:"phone"`
	Address string `json:"address"`

	Nome     string `json:"nome"`
	Telefone string `json:"telefone"`
	Endereco string `json:"endereco"`
}

type orderRequest struct {
	PurchaseRef  string          `json:"purchaseRef"`
	NumeroCompra string          `json:"numero_compra"`
	Customer     customerRequest `json:"customer"`
}

func (r orderRequest) toService() service.OrderCheckoutRequest {
	return service.OrderCheckoutRequest{
		PurchaseRef: firstNonEmpty(r.PurchaseRef, r.NumeroCompra),
		Customer: models.Customer{
			Name:    firstNonEmpty(r.Customer.Name, r.Customer.Nome),
			Email:   r.Customer.Email,
			CPF:     r.Customer.CPF,
			Phone:   firstNonEmpty(r.Customer.Phone, r.Customer.Telefone),
			Address: firstNonEmpty(r.Customer.Address, r.Customer.Endereco),
		},
	}
}

// createOrderCheckout handles cart checkouts
func (h *Handler) createOrderCheckout(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "JSON inválido"})
		return
	}

	res, err := h.checkouts.CheckoutOrder(c.Request.Context(), req.toService())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"checkoutUrl": res.CheckoutURL,
		"linkId":      res.LinkID,
		"total":       res.Total.StringFixed(2),
		"raw":         res.Raw,
		"persisted":   res.Persisted,
	})
}

// getOrder handles order lookup by purchase reference
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.checkouts.GetOrder(c.Request.Context(), c.Param("purchaseRef"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "order": order})
}

// listCartItems handles cart listing
func (h *Handler) listCartItems(c *gin.Context) {
	items, err := h.checkouts.ListCartItems(c.Request.Context(), c.Param("purchaseRef"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "items": items})
}

// getPaymentLink handles payment link lookup at the provider
func (h *Handler) getPaymentLink(c *gin.Context) {
	link, err := h.checkouts.GetPaymentLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "link": link})
}

// receiveWebhook always acknowledges, whatever happened while reconciling
func (h *Handler) receiveWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("Failed to read webhook body", zap.Error(err))
	}

	outcome := h.reconciler.Reconcile(c.Request.Context(), body)
	if outcome.Failed() {
		h.logger.Warn("Webhook acknowledged with reconciliation errors",
			zap.String("event_type", outcome.EventType))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}

	body := gin.H{"ok": false, "error": err.Error()}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Detail != nil {
		if detail, mErr := json.Marshal(appErr.Detail); mErr == nil {
			body["detail"] = json.RawMessage(detail)
		}
	}
	c.JSON(status, body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// corsMiddleware echoes the configured origin and answers preflights
func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if origin != "*" {
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
