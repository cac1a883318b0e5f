package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/logger"
)

type recordingPublisher struct {
	topic string
	event *Event
	err   error
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, event *Event) error {
	r.topic, r.event = topic, event
	return r.err
}

func TestEmitter_Emit(t *testing.T) {
	pub := &recordingPublisher{}
	e := NewEmitter(pub, "cart", "cart-service", discardLogger())
	ctx := logger.WithCorrelationID(context.Background(), "corr-77")

	require.NoError(t, e.Emit(ctx, "storefront.cart.cleared", "cart.cleared", "buyer-3", map[string]string{"buyer_id": "buyer-3"}))

	assert.Equal(t, "storefront.cart.cleared", pub.topic)
	require.NotNil(t, pub.event)
	assert.Equal(t, "cart.cleared", pub.event.EventType)
	assert.Equal(t, "buyer-3", pub.event.AggregateID)
	assert.Equal(t, "cart", pub.event.AggregateType)
	assert.Equal(t, "cart-service", pub.event.Source)
	assert.Equal(t, "corr-77", pub.event.CorrelationID)
	assert.JSONEq(t, `{"buyer_id":"buyer-3"}`, string(pub.event.Data))
}

func TestEmitter_Errors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("leader not available")}
	e := NewEmitter(pub, "account", "account-service", nil)

	err := e.Emit(context.Background(), "storefront.account.registered", "account.registered", "acc-1", nil)
	assert.EqualError(t, err, "emit account.registered: leader not available")

	err = e.Emit(context.Background(), "t", "account.registered", "acc-1", func() {})
	assert.ErrorContains(t, err, "encode account.registered payload")
}
