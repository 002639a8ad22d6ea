package locationsvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SerAbin1/order-tracking-system/internal/dal/interfaces/ilocationrepo"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/apperrors"
	"github.com/SerAbin1/order-tracking-system/internal/service/models/location"
)

// LocationService applies GPS samples: overwrite the current-location
// record, then fan the payload out to the driver's channel. Coordinates
// pass through untouched.
type LocationService struct {
	locationRepo ilocationrepo.ILocationRepository
}

// option is a function that configures the LocationService.
type option func(*LocationService)

// MustNewLocationService creates a new LocationService.
func MustNewLocationService(opts ...option) *LocationService {
	s := &LocationService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.locationRepo == nil {
		panic("locationsvc: location repository is required")
	}

	return s
}

// WithLocationRepository sets the location repository.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithLocationRepository(repo ilocationrepo.ILocationRepository) option {
	return func(s *LocationService) {
		s.locationRepo = repo
	}
}

// Process handles one GPS sample. The cache write happens before the
// publish, so a tracker that connects right after an update can fall back
// to the last known location.
func (s *LocationService) Process(ctx context.Context, sample location.Sample) error {
	if sample.DriverID == "" {
		return fmt.Errorf("%w: driver_id is required", apperrors.ErrValidation)
	}

	payload, err := json.Marshal(sample.Location)
	if err != nil {
		return fmt.Errorf("failed to encode location: %w", err)
	}

	if err := s.locationRepo.SetCurrent(ctx, sample.DriverID, payload); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStore, err)
	}

	if err := s.locationRepo.Publish(ctx, sample.DriverID, payload); err != nil {
		return err
	}

	return nil
}

// LastKnown returns the most recent location for a driver, raw.
func (s *LocationService) LastKnown(ctx context.Context, driverID string) ([]byte, error) {
	return s.locationRepo.GetCurrent(ctx, driverID)
}
