package fusion

import (
	"fmt"
	"math"
)

// Reference values written next to unsigned GPS magnitudes.
const (
	RefNorth      = "N"
	RefSouth      = "S"
	RefEast       = "E"
	RefWest       = "W"
	RefAboveSea   = "0"
	RefBelowSea   = "1"
	RefKilometers = "K"
)

// DecomposeLatitude splits a signed latitude into magnitude and N/S.
func DecomposeLatitude(v float64) (float64, string) {
	return decompose(v, RefNorth, RefSouth)
}

// DecomposeLongitude splits a signed longitude into magnitude and E/W.
func DecomposeLongitude(v float64) (float64, string) {
	return decompose(v, RefEast, RefWest)
}

// DecomposeAltitude splits a signed altitude into magnitude and 0 (above) / 1 (below).
func DecomposeAltitude(v float64) (float64, string) {
	return decompose(v, RefAboveSea, RefBelowSea)
}

func decompose(v float64, positive, negative string) (float64, string) {
	if v < 0 {
		return -v, negative
	}
	return math.Abs(v), positive
}

// ComposeLatitude reverses DecomposeLatitude.
func ComposeLatitude(magnitude float64, ref string) (float64, error) {
	return compose(magnitude, ref, RefNorth, RefSouth)
}

// ComposeLongitude reverses DecomposeLongitude.
func ComposeLongitude(magnitude float64, ref string) (float64, error) {
	return compose(magnitude, ref, RefEast, RefWest)
}

// ComposeAltitude reverses DecomposeAltitude.
func ComposeAltitude(magnitude float64, ref string) (float64, error) {
	return compose(magnitude, ref, RefAboveSea, RefBelowSea)
}

func compose(magnitude float64, ref, positive, negative string) (float64, error) {
	if magnitude < 0 || math.IsNaN(magnitude) {
		return 0, fmt.Errorf("magnitude %v must be non-negative", magnitude)
	}
	switch ref {
	case positive:
		return magnitude, nil
	case negative:
		return -magnitude, nil
	default:
		return 0, fmt.Errorf("reference %q is neither %s nor %s", ref, positive, negative)
	}
}
