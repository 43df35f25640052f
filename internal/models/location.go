package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// MaxLocationBatch bounds a single location upload.
const MaxLocationBatch = 1000

// MaxSequenceNumber is the largest sequence number the store can hold.
const MaxSequenceNumber = math.MaxInt32

// WalkLocation is one GPS sample keyed by (WalkID, SequenceNumber).
type WalkLocation struct {
	WalkID             uuid.UUID
	SequenceNumber     int
	Latitude           float64
	Longitude          float64
	Altitude           *float64
	Timestamp          time.Time
	HorizontalAccuracy *float64
	VerticalAccuracy   *float64
	Speed              *float64
	Course             *float64
}

// IsSentinel reports a 0/0 sample that carries no other signal. Devices emit these
// before acquiring a fix.
func (l WalkLocation) IsSentinel() bool {
	return l.Latitude == 0 && l.Longitude == 0 &&
		l.Altitude == nil && l.HorizontalAccuracy == nil && l.VerticalAccuracy == nil &&
		l.Speed == nil && l.Course == nil
}

// Validate enforces coordinate bounds; the boundary values themselves are accepted.
func (l WalkLocation) Validate() error {
	if l.WalkID == uuid.Nil {
		return invalid("walk_id", "is required")
	}
	if l.SequenceNumber < 0 {
		return invalid("sequence_number", "must not be negative")
	}
	if l.SequenceNumber > MaxSequenceNumber {
		return invalid("sequence_number", "is too large")
	}
	if math.IsNaN(l.Latitude) || l.Latitude < -90 || l.Latitude > 90 {
		return invalid("latitude", "must be within [-90, 90]")
	}
	if math.IsNaN(l.Longitude) || l.Longitude < -180 || l.Longitude > 180 {
		return invalid("longitude", "must be within [-180, 180]")
	}
	if l.Timestamp.IsZero() {
		return invalid("timestamp", "is required")
	}
	if l.IsSentinel() {
		return invalid("coordinates", "0,0 without any other signal is not a fix")
	}
	for field, v := range map[string]*float64{
		"altitude":            l.Altitude,
		"horizontal_accuracy": l.HorizontalAccuracy,
		"vertical_accuracy":   l.VerticalAccuracy,
		"speed":               l.Speed,
		"course":              l.Course,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return invalid(field, "must be a finite number")
		}
	}
	return nil
}
