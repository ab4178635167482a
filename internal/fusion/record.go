package fusion

import (
	"fmt"
	"strconv"
	"time"

	"skytag/internal/telemetry"
)

// DateLayout is the tag date/time format.
const DateLayout = "2006:01:02 15:04:05"

// Tag keys written to every frame.
const (
	KeyCreateDate      = "CreateDate"
	KeyFocalLength     = "FocalLength"
	KeyFocalLength35mm = "FocalLengthIn35mmFormat"
	KeyGPSLatitude     = "exif:GPSLatitude"
	KeyGPSLatitudeRef  = "exif:GPSLatitudeRef"
	KeyGPSLongitude    = "exif:GPSLongitude"
	KeyGPSLongitudeRef = "exif:GPSLongitudeRef"
	KeyGPSAltitude     = "exif:GPSAltitude"
	KeyGPSAltitudeRef  = "exif:GPSAltitudeRef"
	KeyGPSSpeed        = "exif:GPSSpeed"
	KeyGPSSpeedRef     = "exif:GPSSpeedRef"
	KeyShutterSpeed    = "exif:ShutterSpeedValue"
	KeyISO             = "exif:ISO"
	KeyDigitalZoom     = "exif:DigitalZoomRatio"
	KeyAperture        = "exif:ApertureValue"
	KeyExposureComp    = "exif:ExposureCompensation"
)

// Op is how a field value is applied.
type Op string

const (
	OpSet Op = "="
	OpAdd Op = "+="
)

// Field is one tag assignment.
type Field struct {
	Key   string
	Value string
	Op    Op
}

// CommonMetadata holds the tags shared by every frame of a video.
type CommonMetadata struct {
	CreateDate        time.Time
	FocalLength       float64
	FocalLengthIn35mm float64
}

// Fields returns the common tags in write order.
func (c CommonMetadata) Fields() []Field {
	return []Field{
		{Key: KeyCreateDate, Value: c.CreateDate.Format(DateLayout), Op: OpSet},
		{Key: KeyFocalLength, Value: formatFloat(c.FocalLength), Op: OpSet},
		{Key: KeyFocalLength35mm, Value: formatFloat(c.FocalLengthIn35mm), Op: OpSet},
	}
}

// Record is the fused metadata for one frame.
type Record struct {
	Frame      Frame
	Trackpoint telemetry.Trackpoint
	// Fields are the phase 1 tags: common tags first, then per-frame tags.
	Fields []Field
	// Shift is added to CreateDate in phase 2.
	Shift time.Duration
}

// ShiftField returns the phase 2 assignment.
func (r Record) ShiftField() Field {
	return Field{Key: KeyCreateDate, Value: FormatShift(r.Shift), Op: OpAdd}
}

// Value returns the phase 1 value written for key.
func (r Record) Value(key string) (string, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Fuse joins frame with its trackpoint and overlays the per-frame tags on
// the common ones. Common tags are never overwritten.
func Fuse(common CommonMetadata, track *Track, frame Frame) (Record, error) {
	point, err := track.Lookup(frame.Index)
	if err != nil {
		return Record{}, err
	}

	fields := common.Fields()
	taken := make(map[string]bool, len(fields))
	for _, f := range fields {
		taken[f.Key] = true
	}
	for _, f := range frameFields(point) {
		if taken[f.Key] {
			continue
		}
		taken[f.Key] = true
		fields = append(fields, f)
	}

	return Record{
		Frame:      frame,
		Trackpoint: point,
		Fields:     fields,
		Shift:      point.Shift,
	}, nil
}

func frameFields(p telemetry.Trackpoint) []Field {
	lat, latRef := DecomposeLatitude(p.Latitude)
	lon, lonRef := DecomposeLongitude(p.Longitude)
	// Barometric height is steadier than the GPS fix altitude.
	alt, altRef := DecomposeAltitude(p.BarometricAltitude)

	fields := []Field{
		{Key: KeyGPSLatitude, Value: formatFloat(lat), Op: OpSet},
		{Key: KeyGPSLatitudeRef, Value: latRef, Op: OpSet},
		{Key: KeyGPSLongitude, Value: formatFloat(lon), Op: OpSet},
		{Key: KeyGPSLongitudeRef, Value: lonRef, Op: OpSet},
		{Key: KeyGPSAltitude, Value: formatFloat(alt), Op: OpSet},
		{Key: KeyGPSAltitudeRef, Value: altRef, Op: OpSet},
		{Key: KeyGPSSpeed, Value: formatFloat(p.HorizontalSpeed), Op: OpSet},
		{Key: KeyGPSSpeedRef, Value: RefKilometers, Op: OpSet},
	}
	optional := []Field{
		{Key: KeyShutterSpeed, Value: p.ShutterSpeed},
		{Key: KeyISO, Value: p.ISO},
		{Key: KeyDigitalZoom, Value: p.DigitalZoom},
		{Key: KeyAperture, Value: p.Aperture},
		{Key: KeyExposureComp, Value: p.ExposureCompensation},
	}
	for _, f := range optional {
		if f.Value == "" {
			continue
		}
		f.Op = OpSet
		fields = append(fields, f)
	}
	return fields
}

// FormatShift renders a duration as the H:M:S shift string, truncated to
// whole seconds.
func FormatShift(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%s%d:%d:%d", sign, total/3600, (total/60)%60, total%60)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
