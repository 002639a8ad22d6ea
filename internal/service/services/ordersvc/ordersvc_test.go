package ordersvc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/SerAbin1/order-tracking-system/internal/dal/interfaces/iorderrepo"
	"github.com/SerAbin1/order-tracking-system/internal/dal/interfaces/ioutboxrepo"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/apperrors"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/order"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/outbox"
	"github.com/SerAbin1/order-tracking-system/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderRepo struct {
	nextID    int64
	orders    map[int64]order.Order
	insertErr error
	updateErr error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{nextID: 1, orders: make(map[int64]order.Order)}
}

func (f *fakeOrderRepo) Insert(_ context.Context, o order.Order) (order.Order, error) {
	if f.insertErr != nil {
		return order.Order{}, f.insertErr
	}
	o.ID = f.nextID
	f.nextID++
	f.orders[o.ID] = o

	return o, nil
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, id int64, status order.Status) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	o, ok := f.orders[id]
	if !ok {
		o = order.Order{ID: id}
	}
	o.Status = status
	f.orders[id] = o

	return nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, id int64) (order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return order.Order{}, apperrors.ErrStore
	}

	return o, nil
}

type fakeOutboxRepo struct {
	nextID    int64
	rows      map[int64]outbox.Message
	insertErr error
	deleteErr error
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{nextID: 1, rows: make(map[int64]outbox.Message)}
}

func (f *fakeOutboxRepo) Insert(_ context.Context, msg outbox.Message) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	msg.ID = f.nextID
	f.nextID++
	f.rows[msg.ID] = msg

	return msg.ID, nil
}

func (f *fakeOutboxRepo) GetPendingMessages(_ context.Context, limit int) ([]outbox.Message, error) {
	var out []outbox.Message
	for _, msg := range f.rows {
		if len(out) == limit {
			break
		}
		out = append(out, msg)
	}

	return out, nil
}

func (f *fakeOutboxRepo) Delete(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.rows, id)

	return nil
}

func (f *fakeOutboxRepo) UpdateRetry(_ context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	msg := f.rows[id]
	msg.RetryCount = retryCount
	msg.LastError = lastError
	msg.NextRetryAt = nextRetryAt
	f.rows[id] = msg

	return nil
}

type fakeUOW struct {
	orderRepo  *fakeOrderRepo
	outboxRepo *fakeOutboxRepo
	begun      bool
	committed  bool
	rolledBack bool
}

func (f *fakeUOW) Begin(context.Context) error    { f.begun = true; return nil }
func (f *fakeUOW) Commit(context.Context) error   { f.committed = true; return nil }
func (f *fakeUOW) Rollback(context.Context) error { f.rolledBack = true; return nil }

func (f *fakeUOW) OrderRepository() iorderrepo.IOrderRepository {
	return f.orderRepo
}

func (f *fakeUOW) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return f.outboxRepo
}

type fakeBroker struct {
	published map[string][][]byte
	err       error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: make(map[string][][]byte)}
}

func (f *fakeBroker) Publish(queue string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published[queue] = append(f.published[queue], body)

	return nil
}

func newTestService(work *fakeUOW, broker *fakeBroker) *OrderService {
	s := &OrderService{
		queueName:  "orders_queue",
		outboxRepo: work.outboxRepo,
		newUOW:     func() unitOfWork { return work },
	}
	if broker != nil {
		s.broker = broker
	}

	return s
}

func validOrder() order.Order {
	return order.Order{
		CustomerID:   "c1",
		RestaurantID: "r1",
		Items:        []order.Item{{SKU: "x", Qty: 1}},
		TotalPrice:   10,
	}
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	work := &fakeUOW{orderRepo: newFakeOrderRepo(), outboxRepo: newFakeOutboxRepo()}
	s := newTestService(work, nil)

	cases := []struct {
		name string
		o    order.Order
	}{
		{"missing customer_id", order.Order{RestaurantID: "r1", Items: []order.Item{{SKU: "x", Qty: 1}}}},
		{"missing restaurant_id", order.Order{CustomerID: "c1", Items: []order.Item{{SKU: "x", Qty: 1}}}},
		{"empty items", order.Order{CustomerID: "c1", RestaurantID: "r1"}},
		{"non-positive qty", order.Order{CustomerID: "c1", RestaurantID: "r1", Items: []order.Item{{SKU: "x", Qty: 0}}}},
		{"missing sku", order.Order{CustomerID: "c1", RestaurantID: "r1", Items: []order.Item{{Qty: 1}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Submit(context.Background(), tc.o)
			require.ErrorIs(t, err, apperrors.ErrValidation)
			assert.False(t, work.begun, "no transaction for invalid input")
		})
	}
}

func TestSubmitPersistsOrderAndOutboxRowThenPublishes(t *testing.T) {
	work := &fakeUOW{orderRepo: newFakeOrderRepo(), outboxRepo: newFakeOutboxRepo()}
	broker := newFakeBroker()
	s := newTestService(work, broker)

	persisted, err := s.Submit(context.Background(), validOrder())
	require.NoError(t, err)

	assert.Equal(t, int64(1), persisted.ID)
	assert.Equal(t, order.StatusCreated, persisted.Status)
	assert.False(t, persisted.CreatedAt.IsZero())
	assert.True(t, work.committed)

	// Immediate publish succeeded, so the outbox row is gone.
	assert.Empty(t, work.outboxRepo.rows)

	require.Len(t, broker.published["orders_queue"], 1)

	// The queue message is the exact persisted row.
	var fromQueue order.Order
	require.NoError(t, json.Unmarshal(broker.published["orders_queue"][0], &fromQueue))
	assert.Equal(t, persisted.ID, fromQueue.ID)
	assert.Equal(t, order.StatusCreated, fromQueue.Status)
}

func TestSubmitKeepsOutboxRowWhenPublishFails(t *testing.T) {
	work := &fakeUOW{orderRepo: newFakeOrderRepo(), outboxRepo: newFakeOutboxRepo()}
	broker := newFakeBroker()
	broker.err = apperrors.ErrChannelClosed
	s := newTestService(work, broker)

	persisted, err := s.Submit(context.Background(), validOrder())
	require.NoError(t, err, "publish failure must not fail the submit")

	assert.Equal(t, int64(1), persisted.ID)
	require.Len(t, work.outboxRepo.rows, 1, "row stays for the outbox worker")
	for _, row := range work.outboxRepo.rows {
		assert.Equal(t, "orders_queue", row.QueueName)
	}
}

func TestSubmitRollsBackOnInsertFailure(t *testing.T) {
	work := &fakeUOW{orderRepo: newFakeOrderRepo(), outboxRepo: newFakeOutboxRepo()}
	work.orderRepo.insertErr = errors.New("insert failed")
	s := newTestService(work, nil)

	_, err := s.Submit(context.Background(), validOrder())
	require.Error(t, err)
	assert.True(t, work.rolledBack)
	assert.False(t, work.committed)
	assert.Empty(t, work.outboxRepo.rows)
}

func TestAcceptIsIdempotent(t *testing.T) {
	work := &fakeUOW{orderRepo: newFakeOrderRepo(), outboxRepo: newFakeOutboxRepo()}
	s := newTestService(work, nil)

	persisted, err := s.Submit(context.Background(), validOrder())
	require.NoError(t, err)

	require.NoError(t, s.Accept(context.Background(), persisted.ID))
	once, err := s.GetOrder(context.Background(), persisted.ID)
	require.NoError(t, err)

	require.NoError(t, s.Accept(context.Background(), persisted.ID))
	twice, err := s.GetOrder(context.Background(), persisted.ID)
	require.NoError(t, err)

	assert.Equal(t, order.StatusAccepted, once.Status)
	assert.Equal(t, once, twice, "second accept changes nothing")
}

func TestAcceptSurfacesStoreError(t *testing.T) {
	work := &fakeUOW{orderRepo: newFakeOrderRepo(), outboxRepo: newFakeOutboxRepo()}
	work.orderRepo.updateErr = apperrors.ErrStore
	s := newTestService(work, nil)

	err := s.Accept(context.Background(), 42)
	require.ErrorIs(t, err, apperrors.ErrStore)
}

func newTestPipelineMetrics() *metrics.PipelineMetrics {
	return &metrics.PipelineMetrics{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_published_total",
		}, []string{"queue"}),
		Processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_processed_total",
		}, []string{"queue", "outcome"}),
		TrackersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trackers_active",
		}),
	}
}

func TestSubmitCountsPublishedMessages(t *testing.T) {
	work := &fakeUOW{orderRepo: newFakeOrderRepo(), outboxRepo: newFakeOutboxRepo()}
	broker := newFakeBroker()
	s := newTestService(work, broker)
	pm := newTestPipelineMetrics()
	s.metrics = pm

	_, err := s.Submit(context.Background(), validOrder())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.Published.WithLabelValues("orders_queue")))

	// A failed immediate publish leaves the row for the outbox worker and
	// does not count as published.
	broker.err = errors.New("channel is not open")
	_, err = s.Submit(context.Background(), validOrder())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.Published.WithLabelValues("orders_queue")))
}
