package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

// stalledWriter behaves like a writer whose broker never answers
type stalledWriter struct{}

func (stalledWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledWriter) Close() error { return nil }

func TestPublishCheckoutCreated(t *testing.T) {
	w := &recordingWriter{}
	ep := NewEventPublisher(NewProducerWithWriter(w))

	err := ep.PublishCheckoutCreated(context.Background(), &models.CheckoutCreatedEvent{
		Flow:          models.FlowOrder,
		PaymentLinkID: "pl_1",
		PurchaseRef:   "GC-1",
		AmountCents:   2000,
		Persisted:     true,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "GC-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, models.EventTypeCheckoutCreated, string(msg.Headers[0].Value))

	var decoded models.CheckoutCreatedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, models.EventTypeCheckoutCreated, decoded.EventType)
	assert.NotEmpty(t, decoded.EventID)
	assert.Equal(t, int64(2000), decoded.AmountCents)
}

func TestPublishPaymentStatusChangedKeyFallback(t *testing.T) {
	w := &recordingWriter{}
	ep := NewEventPublisher(NewProducerWithWriter(w))

	err := ep.PublishPaymentStatusChanged(context.Background(), &models.PaymentStatusChangedEvent{
		OrderID: "or_9",
		Status:  models.EventChargePaid,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "or_9", string(w.msgs[0].Key))
}

func TestPublishWriteError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	ep := NewEventPublisher(NewProducerWithWriter(w))

	err := ep.PublishOrderStatusChanged(context.Background(), &models.OrderStatusChangedEvent{
		PurchaseRef: "GC-1",
		Status:      models.OrderStatusPaid,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestPublishBoundedByTimeout(t *testing.T) {
	p := NewProducerWithWriter(stalledWriter{})
	assert.Equal(t, DefaultPublishTimeout, p.timeout)
	p.timeout = 50 * time.Millisecond

	start := time.Now()
	err := NewEventPublisher(p).PublishOrderStatusChanged(context.Background(), &models.OrderStatusChangedEvent{
		PurchaseRef: "GC-1",
		Status:      models.OrderStatusPaid,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
