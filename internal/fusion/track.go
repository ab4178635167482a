package fusion

import (
	"fmt"

	"skytag/internal/telemetry"
)

// Track is the telemetry sequence addressed by its explicit index.
type Track struct {
	points []telemetry.Trackpoint
}

// NewTrack wraps points, which must be indexed 0..N-1 in order.
func NewTrack(points []telemetry.Trackpoint) (*Track, error) {
	for i, p := range points {
		if p.Index != i {
			return nil, fmt.Errorf("trackpoint at position %d has index %d", i, p.Index)
		}
	}
	return &Track{points: append([]telemetry.Trackpoint(nil), points...)}, nil
}

// Len returns the number of trackpoints.
func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.points)
}

// Lookup returns the trackpoint for a frame index.
func (t *Track) Lookup(index int) (telemetry.Trackpoint, error) {
	if index < 0 || index >= t.Len() {
		return telemetry.Trackpoint{}, &IndexMismatchError{FrameIndex: index, TrackLength: t.Len()}
	}
	return t.points[index], nil
}
