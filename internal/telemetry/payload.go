package telemetry

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Payload keys understood by the parser.
const (
	KeyGPS      = "GPS"
	KeyHeight   = "H"
	KeySpeed    = "H_S"
	KeyShutter  = "SS"
	KeyISO      = "ISO"
	KeyZoom     = "DZOOM"
	KeyAperture = "F"
	KeyEV       = "EV"
	KeyTimecode = "TIMECODE"
)

var (
	markupPattern = regexp.MustCompile(`<[^>]*>`)
	keyPattern    = regexp.MustCompile(`(?:^|[\s,;])([A-Za-z][A-Za-z0-9_.]*)\s*[=:]\s*`)
	numberPattern = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`)
)

// maxShiftSeconds is the largest offset a time.Duration can hold.
const maxShiftSeconds = math.MaxInt64 / int64(time.Second)

// scanFields splits a payload into upper-cased KEY -> raw value pairs. A value
// runs until the next key. The first occurrence of a key wins.
func scanFields(payload string) map[string]string {
	payload = markupPattern.ReplaceAllString(payload, " ")
	fields := make(map[string]string)
	matches := keyPattern.FindAllStringSubmatchIndex(payload, -1)
	for i, m := range matches {
		key := strings.ToUpper(strings.ReplaceAll(payload[m[2]:m[3]], ".", "_"))
		end := len(payload)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if _, exists := fields[key]; exists {
			continue
		}
		fields[key] = cleanValue(payload[m[1]:end])
	}
	return fields
}

func cleanValue(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimRight(value, ",; ")
	value = strings.TrimSpace(value)
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			value = strings.TrimSpace(value[1 : len(value)-1])
		}
	}
	return value
}

// parseMeasure reads a leading decimal number and returns it with the unit
// text that follows.
func parseMeasure(value string) (float64, string, error) {
	value = strings.TrimSpace(value)
	loc := numberPattern.FindStringIndex(value)
	if loc == nil {
		return 0, "", fmt.Errorf("%q is not numeric", value)
	}
	number, err := strconv.ParseFloat(value[:loc[1]], 64)
	if err != nil {
		return 0, "", fmt.Errorf("%q is not numeric", value)
	}
	return number, strings.ToLower(strings.TrimSpace(value[loc[1]:])), nil
}

func parseAltitude(value string) (float64, error) {
	number, unit, err := parseMeasure(value)
	if err != nil {
		return 0, err
	}
	switch unit {
	case "", "m":
		return number, nil
	default:
		return 0, fmt.Errorf("unsupported altitude unit %q", unit)
	}
}

// parseSpeed returns the speed in km/h; m/s values are converted.
func parseSpeed(value string) (float64, error) {
	number, unit, err := parseMeasure(value)
	if err != nil {
		return 0, err
	}
	switch unit {
	case "", "km/h", "kmh", "kph":
	case "m/s":
		number *= 3.6
	default:
		return 0, fmt.Errorf("unsupported speed unit %q", unit)
	}
	if number < 0 {
		return 0, fmt.Errorf("speed %v is negative", number)
	}
	return number, nil
}

type gpsFix struct {
	lat, lon float64
	alt      float64
	hasAlt   bool
}

func parseGPS(value string, order GPSOrder) (gpsFix, error) {
	trimmed := strings.Trim(strings.TrimSpace(value), "()[]{}")
	parts := strings.Split(trimmed, ",")
	if len(parts) < 2 {
		return gpsFix{}, fmt.Errorf("%q needs at least two components", value)
	}
	var coords [2]float64
	for i := 0; i < 2; i++ {
		component := strings.TrimSpace(parts[i])
		if numberPattern.FindString(component) != component {
			return gpsFix{}, fmt.Errorf("component %d of %q is not numeric", i, value)
		}
		v, err := strconv.ParseFloat(component, 64)
		if err != nil || math.IsInf(v, 0) {
			return gpsFix{}, fmt.Errorf("component %d of %q is not numeric", i, value)
		}
		coords[i] = v
	}
	fix := gpsFix{lat: coords[0], lon: coords[1]}
	if order == LonLat {
		fix.lat, fix.lon = coords[1], coords[0]
	}
	if fix.lat < -90 || fix.lat > 90 {
		return gpsFix{}, fmt.Errorf("latitude %v out of range", fix.lat)
	}
	if fix.lon < -180 || fix.lon > 180 {
		return gpsFix{}, fmt.Errorf("longitude %v out of range", fix.lon)
	}
	if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
		alt, err := parseAltitude(parts[2])
		if err != nil {
			return gpsFix{}, fmt.Errorf("altitude component: %w", err)
		}
		fix.alt, fix.hasAlt = alt, true
	}
	return fix, nil
}

// parseTimecodeShift reads the leading comma-delimited token of a TIMECODE
// value as a whole-seconds offset. Both "2" and "00:00:02" are accepted; any
// sub-second subfield after the first comma is discarded.
func parseTimecodeShift(value string) (time.Duration, error) {
	token := strings.TrimSpace(strings.SplitN(value, ",", 2)[0])
	if token == "" {
		return 0, fmt.Errorf("empty timecode")
	}
	parts := strings.Split(token, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("timecode %q has too many components", token)
	}
	var total int64
	for _, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("timecode %q is not a whole-seconds offset", token)
		}
		if n > maxShiftSeconds || total > (maxShiftSeconds-n)/60 {
			return 0, fmt.Errorf("timecode %q is out of range", token)
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}
