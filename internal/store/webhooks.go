package store

import (
	"context"
	"encoding/json"

	"checkout-service/internal/models"

	"go.uber.org/zap"
)

// auditPayload keeps the body as a JSON document. Bodies that are not JSON
// are wrapped as a string so the row is still written.
func auditPayload(payload []byte) models.JSONB {
	if len(payload) == 0 {
		return models.JSONB("{}")
	}
	if json.Valid(payload) {
		return models.JSONB(payload)
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(payload)})
	return models.JSONB(wrapped)
}

// InsertWebhookEvent appends to the webhook audit log. Failures are logged
// and never returned.
func (s *Store) InsertWebhookEvent(ctx context.Context, eventType string, payload []byte) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO webhooks_pagarme (event_type, payload) VALUES ($1, $2)",
		models.StringPtr(eventType), auditPayload(payload))
	if err != nil {
		s.logger.Error("Failed to store webhook event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

// InsertUnmatchedEvent records a recognized webhook that could not be routed
// to any record. Failures are logged and never returned.
func (s *Store) InsertUnmatchedEvent(ctx context.Context, eventType, reason string, payload []byte) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO webhooks_nao_conciliados (event_type, reason, payload) VALUES ($1, $2, $3)",
		models.StringPtr(eventType), reason, auditPayload(payload))
	if err != nil {
		s.logger.Error("Failed to store unmatched webhook",
			zap.String("event_type", eventType),
			zap.String("reason", reason),
			zap.Error(err))
	}
}
