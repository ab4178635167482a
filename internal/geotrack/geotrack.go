package geotrack

import (
	"encoding/json"
	"fmt"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"skytag/internal/fileutil"
	"skytag/internal/telemetry"
)

// Supported output reference systems.
const (
	CRSWGS84       = "EPSG:4326"
	CRSWebMercator = "EPSG:3857"
)

// Options controls how the track is rendered.
type Options struct {
	// CRS is CRSWGS84 (default) or CRSWebMercator.
	CRS string
	// Indent pretty-prints the document.
	Indent bool
}

type document struct {
	Type     string                `json:"type"`
	CRS      *namedCRS             `json:"crs,omitempty"`
	Features []geom.GeoJSONFeature `json:"features"`
}

type namedCRS struct {
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

// Build renders points as a GeoJSON FeatureCollection.
func Build(points []telemetry.Trackpoint, opts Options) ([]byte, error) {
	project, err := projection(opts.CRS)
	if err != nil {
		return nil, err
	}

	doc := document{
		Type:     "FeatureCollection",
		Features: make([]geom.GeoJSONFeature, 0, len(points)+1),
	}
	if project != nil {
		doc.CRS = &namedCRS{
			Type:       "name",
			Properties: map[string]string{"name": "urn:ogc:def:crs:EPSG::3857"},
		}
	}

	flat := make([]float64, 0, len(points)*3)
	for _, p := range points {
		x, y := p.Longitude, p.Latitude
		if project != nil {
			x, y, _ = project(x, y, 0)
		}
		flat = append(flat, x, y, p.BarometricAltitude)
		point, err := geom.NewPoint(geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Z:    p.BarometricAltitude,
			Type: geom.DimXYZ,
		})
		if err != nil {
			return nil, fmt.Errorf("trackpoint %d: %w", p.Index, err)
		}
		doc.Features = append(doc.Features, geom.GeoJSONFeature{
			Geometry:   point.AsGeometry(),
			ID:         p.Index,
			Properties: pointProperties(p),
		})
	}

	// A hover with a single distinct position has no track line.
	if distinctPositions(flat) >= 2 {
		line, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXYZ))
		if err != nil {
			return nil, fmt.Errorf("track line: %w", err)
		}
		first, last := points[0], points[len(points)-1]
		track := geom.GeoJSONFeature{
			Geometry: line.AsGeometry(),
			ID:       "track",
			Properties: map[string]any{
				"kind":        "track",
				"points":      len(points),
				"start_ms":    first.Offset.Milliseconds(),
				"end_ms":      last.End.Milliseconds(),
				"max_alt_m":   maxAltitude(points),
				"max_speed_k": maxSpeed(points),
			},
		}
		doc.Features = append([]geom.GeoJSONFeature{track}, doc.Features...)
	}

	if opts.Indent {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}

// WriteFile renders points and writes them atomically to path.
func WriteFile(path string, points []telemetry.Trackpoint, opts Options) error {
	data, err := Build(points, opts)
	if err != nil {
		return &AuxiliaryWriteError{Path: path, Err: err}
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return &AuxiliaryWriteError{Path: path, Err: err}
	}
	return nil
}

func projection(crs string) (func(a, b, c float64) (float64, float64, float64), error) {
	switch strings.ToUpper(strings.TrimSpace(crs)) {
	case "", CRSWGS84:
		return nil, nil
	case CRSWebMercator:
		transform := wgs84.EPSG().Transform(4326, 3857)
		return func(a, b, c float64) (float64, float64, float64) {
			return transform(a, b, c)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported crs %q", crs)
	}
}

func pointProperties(p telemetry.Trackpoint) map[string]any {
	props := map[string]any{
		"kind":      "frame",
		"index":     p.Index,
		"offset_ms": p.Offset.Milliseconds(),
		"offset_s":  p.OffsetSeconds(),
		"lat":       p.Latitude,
		"lon":       p.Longitude,
		"alt_m":     p.BarometricAltitude,
		"speed_kmh": p.HorizontalSpeed,
		"timecode":  p.Timecode,
	}
	if p.HasGPSAltitude {
		props["gps_alt_m"] = p.GPSAltitude
	}
	optional := map[string]string{
		"shutter":  p.ShutterSpeed,
		"iso":      p.ISO,
		"aperture": p.Aperture,
		"ev":       p.ExposureCompensation,
		"dzoom":    p.DigitalZoom,
	}
	for key, value := range optional {
		if value != "" {
			props[key] = value
		}
	}
	return props
}

func maxAltitude(points []telemetry.Trackpoint) float64 {
	highest := points[0].BarometricAltitude
	for _, p := range points[1:] {
		if p.BarometricAltitude > highest {
			highest = p.BarometricAltitude
		}
	}
	return highest
}

func maxSpeed(points []telemetry.Trackpoint) float64 {
	fastest := points[0].HorizontalSpeed
	for _, p := range points[1:] {
		if p.HorizontalSpeed > fastest {
			fastest = p.HorizontalSpeed
		}
	}
	return fastest
}

// distinctPositions counts distinct XY pairs in an XYZ flat sequence, stopping
// at two.
func distinctPositions(flat []float64) int {
	if len(flat) < 3 {
		return 0
	}
	x, y := flat[0], flat[1]
	for i := 3; i+1 < len(flat); i += 3 {
		if flat[i] != x || flat[i+1] != y {
			return 2
		}
	}
	return 1
}
