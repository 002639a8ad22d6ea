package location

import "time"

// Coordinates is a GPS fix. Serialized exactly as received: the location
// pipeline is a pass-through and the tracking gateway forwards it verbatim.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Sample is one GPS update from a driver. Only the most recent sample per
// driver is retained.
type Sample struct {
	DriverID  string      `json:"driver_id"`
	Location  Coordinates `json:"location"`
	Timestamp time.Time   `json:"timestamp"`
}
