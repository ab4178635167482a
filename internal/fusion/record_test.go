package fusion

import (
	"errors"
	"testing"
	"time"

	"skytag/internal/telemetry"
)

func TestFuseIncludesExposureFieldsWhenPresent(t *testing.T) {
	track, err := NewTrack([]telemetry.Trackpoint{{
		Index:                0,
		Latitude:             -33.8568,
		Longitude:            151.2153,
		GPSAltitude:          80,
		HasGPSAltitude:       true,
		BarometricAltitude:   42.5,
		HorizontalSpeed:      9,
		ShutterSpeed:         "1/640",
		ISO:                  "100",
		DigitalZoom:          "1.000",
		Aperture:             "2.8",
		ExposureCompensation: "-0.3",
		Shift:                65 * time.Second,
	}})
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}

	rec, err := Fuse(fixtureCommon, track, Frame{Index: 0, Counter: 1, Name: "a_000001.jpg", Path: "/a_000001.jpg"})
	if err != nil {
		t.Fatalf("Fuse returned error: %v", err)
	}

	want := map[string]string{
		KeyGPSLatitude:     "33.8568",
		KeyGPSLatitudeRef:  "S",
		KeyGPSLongitude:    "151.2153",
		KeyGPSLongitudeRef: "E",
		KeyGPSAltitude:     "42.5",
		KeyGPSAltitudeRef:  "0",
		KeyShutterSpeed:    "1/640",
		KeyISO:             "100",
		KeyDigitalZoom:     "1.000",
		KeyAperture:        "2.8",
		KeyExposureComp:    "-0.3",
	}
	for key, value := range want {
		got, ok := rec.Value(key)
		if !ok || got != value {
			t.Errorf("%s = %q (%v), want %q", key, got, ok, value)
		}
	}
	if rec.ShiftField() != (Field{Key: KeyCreateDate, Value: "0:1:5", Op: OpAdd}) {
		t.Fatalf("unexpected shift field %+v", rec.ShiftField())
	}
	if len(rec.Fields) != 3+8+5 {
		t.Fatalf("unexpected field count %d", len(rec.Fields))
	}
}

func TestFuseKeepsCommonKeysFirstAndUnique(t *testing.T) {
	track := fixtureTrack(t)
	rec, err := Fuse(fixtureCommon, track, makeFrames(1)[0])
	if err != nil {
		t.Fatalf("Fuse returned error: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range rec.Fields {
		if seen[f.Key] {
			t.Fatalf("duplicate key %s", f.Key)
		}
		seen[f.Key] = true
	}
	common := fixtureCommon.Fields()
	for i, f := range common {
		if rec.Fields[i] != f {
			t.Fatalf("common field %d = %+v, want %+v", i, rec.Fields[i], f)
		}
	}
}

func TestFuseUnmatchedFrame(t *testing.T) {
	_, err := Fuse(fixtureCommon, fixtureTrack(t), Frame{Index: 7, Name: "x_000008.jpg"})
	var mismatch *IndexMismatchError
	if !errors.As(err, &mismatch) || mismatch.FrameIndex != 7 {
		t.Fatalf("expected IndexMismatchError for index 7, got %v", err)
	}
}

func TestNewTrackRejectsGaps(t *testing.T) {
	if _, err := NewTrack([]telemetry.Trackpoint{{Index: 0}, {Index: 2}}); err == nil {
		t.Fatal("expected error for non-contiguous indices")
	}
	track, err := NewTrack(nil)
	if err != nil || track.Len() != 0 {
		t.Fatalf("empty track: %v, %d", err, track.Len())
	}
	if _, err := track.Lookup(0); !errors.Is(err, ErrIndexMismatch) {
		t.Fatalf("expected mismatch on empty track, got %v", err)
	}
	if _, err := fixtureTrack(t).Lookup(-1); !errors.Is(err, ErrIndexMismatch) {
		t.Fatalf("expected mismatch for negative index, got %v", err)
	}
}

func TestFormatShift(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:0:0"},
		{2 * time.Second, "0:0:2"},
		{2*time.Second + 999*time.Millisecond, "0:0:2"},
		{65 * time.Second, "0:1:5"},
		{3*time.Hour + 4*time.Minute + 5*time.Second, "3:4:5"},
		{-90 * time.Second, "-0:1:30"},
	}
	for _, tt := range tests {
		if got := FormatShift(tt.in); got != tt.want {
			t.Errorf("FormatShift(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
