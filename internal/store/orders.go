package store

import (
	"context"
	"database/sql"
	"errors"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
	"checkout-service/internal/util"
)

const orderHeaderColumns = `numero_compra, total, status, pagarme_transaction_id, pagarme_checkout_url,
	cliente_nome, cliente_email, cliente_cpf, cliente_telefone, cliente_endereco,
	correlation_id, created_at, updated_at`

// ListCartItems returns the lines still in the cart for purchaseRef, oldest first
func (s *Store) ListCartItems(ctx context.Context, purchaseRef string) ([]models.OrderLineItem, error) {
	ctx, span := util.StartSpan(ctx, "Store.ListCartItems")
	defer span.End()

	items := []models.OrderLineItem{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, numero_compra, nome_produto, preco::text AS preco, quantidade::text AS quantidade,
			status, created_at
		FROM pedidos
		WHERE numero_compra = $1 AND status = $2
		ORDER BY created_at ASC, id ASC`,
		purchaseRef, models.OrderStatusCart)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, err, "erro ao listar itens do carrinho (numero_compra=%s)", purchaseRef)
	}
	return items, nil
}

// MarkLineItemsStatus moves every line of purchaseRef to status
func (s *Store) MarkLineItemsStatus(ctx context.Context, purchaseRef string, status models.OrderStatus) (int64, error) {
	ctx, span := util.StartSpan(ctx, "Store.MarkLineItemsStatus")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		"UPDATE pedidos SET status = $1 WHERE numero_compra = $2",
		status, purchaseRef)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStore, err, "erro ao atualizar itens do pedido (numero_compra=%s)", purchaseRef)
	}
	return res.RowsAffected()
}

// UpsertOrderHeader inserts the header or replaces every mutable column of
// the existing one. The stored row is scanned back into h.
func (s *Store) UpsertOrderHeader(ctx context.Context, h *models.OrderHeader) error {
	ctx, span := util.StartSpan(ctx, "Store.UpsertOrderHeader")
	defer span.End()

	query := `
		INSERT INTO pedidos_header (numero_compra, total, status, pagarme_transaction_id,
			pagarme_checkout_url, cliente_nome, cliente_email, cliente_cpf, cliente_telefone,
			cliente_endereco, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (numero_compra) DO UPDATE SET
			total = EXCLUDED.total,
			status = EXCLUDED.status,
			pagarme_transaction_id = EXCLUDED.pagarme_transaction_id,
			pagarme_checkout_url = EXCLUDED.pagarme_checkout_url,
			cliente_nome = EXCLUDED.cliente_nome,
			cliente_email = EXCLUDED.cliente_email,
			cliente_cpf = EXCLUDED.cliente_cpf,
			cliente_telefone = EXCLUDED.cliente_telefone,
			cliente_endereco = EXCLUDED.cliente_endereco,
			correlation_id = EXCLUDED.correlation_id,
			updated_at = NOW()
		RETURNING ` + orderHeaderColumns

	err := s.db.GetContext(ctx, h, query,
		h.PurchaseRef, h.Total, h.Status, h.ProviderTxID, h.ProviderCheckoutURL,
		h.CustomerName, h.CustomerEmail, h.CustomerCPF, h.CustomerPhone, h.CustomerAddress,
		h.CorrelationID)
	if err != nil {
		return apperr.Wrap(apperr.KindStore, err, "erro ao gravar pedido (numero_compra=%s)", h.PurchaseRef)
	}
	return nil
}

// UpdateOrderHeaderStatus sets the header status. An empty providerTxID
// keeps the stored transaction id.
func (s *Store) UpdateOrderHeaderStatus(ctx context.Context, purchaseRef string, status models.OrderStatus, providerTxID string) (int64, error) {
	ctx, span := util.StartSpan(ctx, "Store.UpdateOrderHeaderStatus")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
		UPDATE pedidos_header
		SET status = $1,
			pagarme_transaction_id = COALESCE(NULLIF($2, ''), pagarme_transaction_id),
			updated_at = NOW()
		WHERE numero_compra = $3`,
		status, providerTxID, purchaseRef)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStore, err, "erro ao atualizar pedido (numero_compra=%s)", purchaseRef)
	}
	return res.RowsAffected()
}

// GetOrderHeader returns nil when the purchase reference is unknown
func (s *Store) GetOrderHeader(ctx context.Context, purchaseRef string) (*models.OrderHeader, error) {
	ctx, span := util.StartSpan(ctx, "Store.GetOrderHeader")
	defer span.End()

	var h models.OrderHeader
	err := s.db.GetContext(ctx, &h,
		"SELECT "+orderHeaderColumns+" FROM pedidos_header WHERE numero_compra = $1", purchaseRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, err, "erro ao buscar pedido (numero_compra=%s)", purchaseRef)
	}
	return &h, nil
}
