package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// Trackpoint is one telemetry sample. Trackpoints are immutable once parsed.
type Trackpoint struct {
	// Index is the 0-based position in the telemetry stream.
	Index int
	// Offset is the caption start relative to the start of the stream.
	Offset time.Duration
	// End is the caption end relative to the start of the stream.
	End time.Duration

	Latitude       float64
	Longitude      float64
	GPSAltitude    float64
	HasGPSAltitude bool

	// BarometricAltitude is H, meters relative to takeoff.
	BarometricAltitude float64
	// HorizontalSpeed is H_S in km/h.
	HorizontalSpeed float64

	ShutterSpeed         string
	ISO                  string
	DigitalZoom          string
	Aperture             string
	ExposureCompensation string

	// Timecode is the raw TIMECODE value and Shift its whole-seconds leading token.
	Timecode string
	Shift    time.Duration
}

// OffsetSeconds returns the caption start truncated to whole seconds.
func (t Trackpoint) OffsetSeconds() int64 {
	return int64(t.Offset / time.Second)
}

// GPSOrder describes the layout of the GPS tuple in the payload.
type GPSOrder int

const (
	// LatLon is (latitude, longitude[, altitude]).
	LatLon GPSOrder = iota
	// LonLat is (longitude, latitude[, altitude]) as written by older firmware.
	LonLat
)

func (o GPSOrder) String() string {
	if o == LonLat {
		return "lon_lat"
	}
	return "lat_lon"
}

// ParseGPSOrder maps a configuration value onto a GPSOrder.
func ParseGPSOrder(value string) (GPSOrder, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "lat_lon", "latlon":
		return LatLon, nil
	case "lon_lat", "lonlat":
		return LonLat, nil
	default:
		return LatLon, fmt.Errorf("unknown gps order %q", value)
	}
}
