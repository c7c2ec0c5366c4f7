package subscriber

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"comandero/internal/xpkg/logger"
	pkgmodels "comandero/pkg/models"
	"comandero/pkg/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscriber(t *testing.T) *Subscriber {
	t.Helper()
	mylog, err := logger.New("ERROR")
	require.NoError(t, err)
	return New(nil, mylog)
}

func encodeEvent(t *testing.T, event pkgmodels.ChangeEvent) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp.Delivery{Body: body}
}

func TestSessionOutlivesCallerContext(t *testing.T) {
	s := newTestSubscriber(t)

	startupCtx, cancel := context.WithCancel(context.Background())
	deliveries := make(chan amqp.Delivery, 1)
	got := make(chan pkgmodels.ChangeEvent, 1)

	s.begin(startupCtx, Key{Identity: "token", Filter: ""}, &rabbitmq.RabbitMQ{}, deliveries,
		func(_ context.Context, event pkgmodels.ChangeEvent) { got <- event })
	defer s.Teardown()

	// The startup scope ends once subscribe and snapshot have both returned;
	// the live feed must keep consuming past that point.
	cancel()

	deliveries <- encodeEvent(t, pkgmodels.ChangeEvent{ID: "e1", Op: pkgmodels.OpUpdate, OrderID: 5})

	select {
	case event := <-got:
		assert.Equal(t, int64(5), event.OrderID)
	case <-time.After(2 * time.Second):
		t.Fatal("consume loop stopped when the caller context was cancelled")
	}
}

func TestTeardownStopsSession(t *testing.T) {
	s := newTestSubscriber(t)

	deliveries := make(chan amqp.Delivery, 1)
	handled := make(chan struct{}, 1)

	s.begin(context.Background(), Key{Identity: "token"}, &rabbitmq.RabbitMQ{}, deliveries,
		func(_ context.Context, _ pkgmodels.ChangeEvent) { handled <- struct{}{} })

	s.Teardown()
	assert.Nil(t, s.active)

	deliveries <- encodeEvent(t, pkgmodels.ChangeEvent{ID: "e2", Op: pkgmodels.OpDelete, OrderID: 9})
	select {
	case <-handled:
		t.Fatal("event handled after teardown")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClosedDeliveriesEndSession(t *testing.T) {
	s := newTestSubscriber(t)

	deliveries := make(chan amqp.Delivery)
	s.begin(context.Background(), Key{Identity: "token"}, &rabbitmq.RabbitMQ{}, deliveries,
		func(_ context.Context, _ pkgmodels.ChangeEvent) {})

	close(deliveries)

	select {
	case <-s.active.done:
	case <-time.After(2 * time.Second):
		t.Fatal("consume loop did not exit on closed channel")
	}
	// Teardown after a broker-side close is still safe.
	s.Teardown()
	assert.Nil(t, s.active)
}

func TestUndecodableEventIsSkipped(t *testing.T) {
	s := newTestSubscriber(t)

	deliveries := make(chan amqp.Delivery, 2)
	got := make(chan pkgmodels.ChangeEvent, 1)

	s.begin(context.Background(), Key{Identity: "token"}, &rabbitmq.RabbitMQ{}, deliveries,
		func(_ context.Context, event pkgmodels.ChangeEvent) { got <- event })
	defer s.Teardown()

	deliveries <- amqp.Delivery{Body: []byte("{not json")}
	deliveries <- encodeEvent(t, pkgmodels.ChangeEvent{ID: "e3", Op: pkgmodels.OpInsert, OrderID: 3})

	select {
	case event := <-got:
		assert.Equal(t, int64(3), event.OrderID)
	case <-time.After(2 * time.Second):
		t.Fatal("valid event after a bad one was not handled")
	}
}
