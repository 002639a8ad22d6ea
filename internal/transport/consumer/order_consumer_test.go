package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/SerAbin1/order-tracking-system/internal/service/models/location"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/order"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcknowledger struct {
	acked        bool
	nacked       bool
	requeue      bool
	nackMultiple bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acked = true

	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.nackMultiple = multiple
	a.requeue = requeue

	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.nacked = true
	a.requeue = requeue

	return nil
}

type fakeOrderService struct {
	err      error
	accepted []int64
}

func (s *fakeOrderService) Accept(ctx context.Context, id int64) error {
	if s.err != nil {
		return s.err
	}
	s.accepted = append(s.accepted, id)

	return nil
}

func delivery(t *testing.T, ack amqp.Acknowledger, payload any) amqp.Delivery {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         body,
	}
}

func TestOrderConsumer_AcksAfterAccept(t *testing.T) {
	svc := &fakeOrderService{}
	ack := &fakeAcknowledger{}
	c := &OrderConsumer{service: svc, queue: "orders_queue"}

	c.processMessage(context.Background(), delivery(t, ack, order.Order{ID: 42}))

	assert.Equal(t, []int64{42}, svc.accepted)
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}

func TestOrderConsumer_MalformedPayloadDropped(t *testing.T) {
	svc := &fakeOrderService{}
	ack := &fakeAcknowledger{}
	c := &OrderConsumer{service: svc, queue: "orders_queue"}

	c.processMessage(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         []byte("{not json"),
	})

	assert.Empty(t, svc.accepted)
	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue, "malformed messages must not be requeued")
}

func TestOrderConsumer_StoreFailureRequeues(t *testing.T) {
	svc := &fakeOrderService{err: errors.New("connection refused")}
	ack := &fakeAcknowledger{}
	c := &OrderConsumer{service: svc, queue: "orders_queue"}

	c.processMessage(context.Background(), delivery(t, ack, order.Order{ID: 42}))

	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue, "transient failures must be redelivered")

	// Redelivery after the store recovers converges to the acknowledged
	// state.
	svc.err = nil
	redeliveredAck := &fakeAcknowledger{}
	c.processMessage(context.Background(), delivery(t, redeliveredAck, order.Order{ID: 42}))

	assert.Equal(t, []int64{42}, svc.accepted)
	assert.True(t, redeliveredAck.acked)
}

func TestOrderConsumer_CancelledContextLeavesUnacked(t *testing.T) {
	svc := &fakeOrderService{}
	ack := &fakeAcknowledger{}
	c := &OrderConsumer{service: svc, queue: "orders_queue", delay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c.processMessage(ctx, delivery(t, ack, order.Order{ID: 42}))

	assert.Empty(t, svc.accepted)
	assert.False(t, ack.acked)
	assert.False(t, ack.nacked)
}

type fakeLocationService struct {
	err     error
	samples []location.Sample
}

func (s *fakeLocationService) Process(ctx context.Context, sample location.Sample) error {
	if s.err != nil {
		return s.err
	}
	s.samples = append(s.samples, sample)

	return nil
}

func TestLocationConsumer_AcksAfterProcess(t *testing.T) {
	svc := &fakeLocationService{}
	ack := &fakeAcknowledger{}
	c := &LocationConsumer{service: svc, queue: "gps_updates_queue"}

	sample := location.Sample{
		DriverID: "driver-1",
		Location: location.Coordinates{Latitude: 16.9891, Longitude: 82.2475},
	}
	c.processMessage(context.Background(), delivery(t, ack, sample))

	require.Len(t, svc.samples, 1)
	assert.Equal(t, "driver-1", svc.samples[0].DriverID)
	assert.True(t, ack.acked)
}

func TestLocationConsumer_ProcessFailureRequeues(t *testing.T) {
	svc := &fakeLocationService{err: errors.New("redis down")}
	ack := &fakeAcknowledger{}
	c := &LocationConsumer{service: svc, queue: "gps_updates_queue"}

	c.processMessage(context.Background(), delivery(t, ack, location.Sample{DriverID: "driver-1"}))

	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
}
