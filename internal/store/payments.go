package store

import (
	"context"
	"database/sql"
	"errors"

	"checkout-service/internal/apperr"
	"checkout-service/internal/models"
	"checkout-service/internal/util"
)

// InsertPayment stores a new subscription checkout
func (s *Store) InsertPayment(ctx context.Context, p *models.PaymentRecord) error {
	ctx, span := util.StartSpan(ctx, "Store.InsertPayment")
	defer span.End()

	if p.Origin == "" {
		p.Origin = models.DefaultOrigin
	}

	query := `
		INSERT INTO pagamentos (user_id, email, tipo, payment_link_id, checkout_url,
			pagarme_status, pagarme_raw, origem, order_id, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.UserID, p.Email, p.Kind, p.PaymentLinkID, p.CheckoutURL,
		p.Status, p.Raw, p.Origin, p.OrderID, p.CorrelationID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return apperr.Wrap(apperr.KindStore, err, "erro ao gravar pagamento (payment_link_id=%s)", p.PaymentLinkID)
	}
	return nil
}

// UpdatePaymentByLinkID sets the status of the payment created for linkID.
// Matching no row is not an error.
func (s *Store) UpdatePaymentByLinkID(ctx context.Context, linkID, status string, extra models.PaymentExtra) (int64, error) {
	ctx, span := util.StartSpan(ctx, "Store.UpdatePaymentByLinkID")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
		UPDATE pagamentos
		SET pagarme_status = $1, order_id = COALESCE(NULLIF($2, ''), order_id), updated_at = NOW()
		WHERE payment_link_id = $3`,
		status, extra.OrderID, linkID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStore, err, "erro ao atualizar pagamento (payment_link_id=%s)", linkID)
	}
	return res.RowsAffected()
}

// UpdatePaymentByOrderID sets the status of payments stamped with orderID
func (s *Store) UpdatePaymentByOrderID(ctx context.Context, orderID, status string, extra models.PaymentExtra) (int64, error) {
	ctx, span := util.StartSpan(ctx, "Store.UpdatePaymentByOrderID")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
		UPDATE pagamentos
		SET pagarme_status = $1, order_id = COALESCE(NULLIF($2, ''), order_id), updated_at = NOW()
		WHERE order_id = $3`,
		status, extra.OrderID, orderID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStore, err, "erro ao atualizar pagamento (order_id=%s)", orderID)
	}
	return res.RowsAffected()
}

// GetPaymentByLinkID returns nil when no payment has that link id
func (s *Store) GetPaymentByLinkID(ctx context.Context, linkID string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := s.db.GetContext(ctx, &p, "SELECT * FROM pagamentos WHERE payment_link_id = $1", linkID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, err, "erro ao buscar pagamento (payment_link_id=%s)", linkID)
	}
	return &p, nil
}

// GetPaymentByOrderID returns the most recent payment stamped with orderID
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.PaymentRecord, error) {
	var p models.PaymentRecord
	err := s.db.GetContext(ctx, &p,
		"SELECT * FROM pagamentos WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStore, err, "erro ao buscar pagamento (order_id=%s)", orderID)
	}
	return &p, nil
}
