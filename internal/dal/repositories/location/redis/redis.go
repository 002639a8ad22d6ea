package redisrepo

import (
	"context"
	"fmt"

	redisdal "github.com/SerAbin1/order-tracking-system/internal/dal/redis"
	"github.com/redis/go-redis/v9"
)

// LocationRepository stores the current location per driver and fans
// updates out over a per-driver pub/sub channel.
type LocationRepository struct {
	client *redisdal.Client
}

func NewLocationRepository(client *redisdal.Client) *LocationRepository {
	return &LocationRepository{
		client: client,
	}
}

func locationKey(driverID string) string {
	return fmt.Sprintf("driver:location:%s", driverID)
}

func channelName(driverID string) string {
	return fmt.Sprintf("driver_updates:%s", driverID)
}

// SetCurrent overwrites the current-location record for a driver. No
// history is kept.
func (r *LocationRepository) SetCurrent(ctx context.Context, driverID string, payload []byte) error {
	if err := r.client.RDB().Set(ctx, locationKey(driverID), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to set current location: %w", err)
	}

	return nil
}

// GetCurrent reads the last known location for a driver.
func (r *LocationRepository) GetCurrent(ctx context.Context, driverID string) ([]byte, error) {
	payload, err := r.client.RDB().Get(ctx, locationKey(driverID)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to get current location: %w", err)
	}

	return payload, nil
}

// Publish fans the payload out to every current subscriber of the driver's
// channel. A message with no subscriber is dropped.
func (r *LocationRepository) Publish(ctx context.Context, driverID string, payload []byte) error {
	if err := r.client.RDB().Publish(ctx, channelName(driverID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish location update: %w", err)
	}

	return nil
}

// DriverSubscription is a live subscription to one driver's channel.
type DriverSubscription struct {
	pubsub *redis.PubSub
	msgs   chan []byte
}

// Messages returns the stream of raw payloads. Closed when the
// subscription is released.
func (s *DriverSubscription) Messages() <-chan []byte {
	return s.msgs
}

// Close releases the subscription.
func (s *DriverSubscription) Close() error {
	return s.pubsub.Close()
}

// Subscribe opens a dedicated subscription to the driver's channel. Each
// caller gets an independent subscription: many trackers of the same
// driver all receive every update.
func (r *LocationRepository) Subscribe(ctx context.Context, driverID string) (*DriverSubscription, error) {
	pubsub := r.client.RDB().Subscribe(ctx, channelName(driverID))

	// Confirm the subscription before handing it out, so a publish that
	// happens right after Subscribe returns is not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()

		return nil, fmt.Errorf("failed to subscribe to %s: %w", channelName(driverID), err)
	}

	sub := &DriverSubscription{
		pubsub: pubsub,
		msgs:   make(chan []byte, 16),
	}

	go relay(pubsub.Channel(), sub.msgs)

	return sub, nil
}

// relay pumps pub/sub payloads into out until in closes. The send never
// blocks: when the receiver lags behind a full buffer the update is
// dropped, since the next one supersedes it. A blocking send here would
// strand the goroutine after the receiver goes away and Close fires.
func relay(in <-chan *redis.Message, out chan []byte) {
	defer close(out)

	for msg := range in {
		select {
		case out <- []byte(msg.Payload):
		default:
		}
	}
}
