package ilocationrepo

import "context"

// ILocationRepository defines the contract for the current-location cache
// and the per-driver fan-out channel.
type ILocationRepository interface {
	// SetCurrent overwrites the current-location record for a driver.
	SetCurrent(ctx context.Context, driverID string, payload []byte) error

	// GetCurrent reads the last known location for a driver.
	GetCurrent(ctx context.Context, driverID string) ([]byte, error)

	// Publish fans the payload out to every current subscriber of the
	// driver's channel. Fire-and-forget: no subscriber, no delivery.
	Publish(ctx context.Context, driverID string, payload []byte) error
}
