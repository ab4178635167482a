package telemetry

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	headerPattern  = regexp.MustCompile(`^\s*(\d+):(\d{2}):(\d{2})[,.](\d{1,3})\s*-->\s*(\d+):(\d{2}):(\d{2})[,.](\d{1,3})`)
	counterPattern = regexp.MustCompile(`^\s*\d+\s*$`)
)

// Option configures Parse.
type Option func(*parser)

// WithGPSOrder sets the GPS tuple layout. The default is LatLon.
func WithGPSOrder(order GPSOrder) Option {
	return func(p *parser) { p.order = order }
}

type parser struct {
	order GPSOrder
}

// ParseFile reads and parses a telemetry file.
func ParseFile(path string, opts ...Option) ([]Trackpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read telemetry: %w", err)
	}
	return Parse(string(data), opts...)
}

// Parse converts raw caption text into trackpoints indexed 0..N-1 in entry
// order. Any incomplete entry aborts the parse.
func Parse(raw string, opts ...Option) ([]Trackpoint, error) {
	p := parser{order: LatLon}
	for _, opt := range opts {
		opt(&p)
	}

	blocks := splitBlocks(raw)
	if len(blocks) == 0 {
		return nil, malformed(-1, "", "no telemetry entries")
	}

	points := make([]Trackpoint, 0, len(blocks))
	for i, block := range blocks {
		point, err := p.parseBlock(i, block)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, nil
}

func splitBlocks(raw string) []string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.TrimPrefix(normalized, "\ufeff")
	var blocks []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range strings.Split(normalized, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if strings.Contains(line, "-->") && hasHeader(current) {
			// A second header without a separating blank line opens a new
			// entry; its counter line, if any, moves with it.
			var carried []string
			if last := current[len(current)-1]; counterPattern.MatchString(last) {
				carried = []string{last}
				current = current[:len(current)-1]
			}
			flush()
			current = carried
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

func hasHeader(lines []string) bool {
	for _, line := range lines {
		if strings.Contains(line, "-->") {
			return true
		}
	}
	return false
}

func (p parser) parseBlock(entry int, block string) (Trackpoint, error) {
	lines := strings.Split(block, "\n")
	headerAt := -1
	for i, line := range lines {
		if strings.Contains(line, "-->") {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return Trackpoint{}, malformed(entry, "", "missing timing header")
	}
	start, end, err := parseHeader(lines[headerAt])
	if err != nil {
		return Trackpoint{}, malformed(entry, "", "%v", err)
	}

	payload := strings.Join(lines[headerAt+1:], " ")
	fields := scanFields(payload)

	point := Trackpoint{Index: entry, Offset: start, End: end}

	gpsValue, ok := fields[KeyGPS]
	if !ok {
		return Trackpoint{}, malformed(entry, KeyGPS, "missing")
	}
	fix, err := parseGPS(gpsValue, p.order)
	if err != nil {
		return Trackpoint{}, malformed(entry, KeyGPS, "%v", err)
	}
	point.Latitude, point.Longitude = fix.lat, fix.lon
	point.GPSAltitude, point.HasGPSAltitude = fix.alt, fix.hasAlt

	heightValue, ok := fields[KeyHeight]
	if !ok {
		return Trackpoint{}, malformed(entry, KeyHeight, "missing")
	}
	if point.BarometricAltitude, err = parseAltitude(heightValue); err != nil {
		return Trackpoint{}, malformed(entry, KeyHeight, "%v", err)
	}

	speedValue, ok := fields[KeySpeed]
	if !ok {
		return Trackpoint{}, malformed(entry, KeySpeed, "missing")
	}
	if point.HorizontalSpeed, err = parseSpeed(speedValue); err != nil {
		return Trackpoint{}, malformed(entry, KeySpeed, "%v", err)
	}

	timecode, ok := fields[KeyTimecode]
	if !ok {
		return Trackpoint{}, malformed(entry, KeyTimecode, "missing")
	}
	if point.Shift, err = parseTimecodeShift(timecode); err != nil {
		return Trackpoint{}, malformed(entry, KeyTimecode, "%v", err)
	}
	point.Timecode = timecode

	point.ShutterSpeed = fields[KeyShutter]
	point.ISO = fields[KeyISO]
	point.DigitalZoom = fields[KeyZoom]
	point.Aperture = fields[KeyAperture]
	point.ExposureCompensation = fields[KeyEV]
	return point, nil
}

func parseHeader(line string) (time.Duration, time.Duration, error) {
	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid timing header %q", strings.TrimSpace(line))
	}
	start := clock(m[1], m[2], m[3], m[4])
	end := clock(m[5], m[6], m[7], m[8])
	if end < start {
		return 0, 0, fmt.Errorf("timing header %q ends before it starts", strings.TrimSpace(line))
	}
	return start, end, nil
}

func clock(h, m, s, ms string) time.Duration {
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(m)
	seconds, _ := strconv.Atoi(s)
	// "5" after a comma means 500ms, matching how players read short fractions.
	for len(ms) < 3 {
		ms += "0"
	}
	millis, _ := strconv.Atoi(ms)
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
}
