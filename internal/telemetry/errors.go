package telemetry

import (
	"errors"
	"fmt"
)

// ErrMalformedTelemetry marks every MalformedTelemetryError for errors.Is checks.
var ErrMalformedTelemetry = errors.New("malformed telemetry")

// MalformedTelemetryError reports a caption block that cannot be turned into a
// complete trackpoint. Entry is the 0-based block position, -1 for stream-level
// problems.
type MalformedTelemetryError struct {
	Entry  int
	Field  string
	Reason string
}

func (e *MalformedTelemetryError) Error() string {
	switch {
	case e.Entry < 0:
		return fmt.Sprintf("%v: %s", ErrMalformedTelemetry, e.Reason)
	case e.Field == "":
		return fmt.Sprintf("%v: entry %d: %s", ErrMalformedTelemetry, e.Entry, e.Reason)
	default:
		return fmt.Sprintf("%v: entry %d: field %s: %s", ErrMalformedTelemetry, e.Entry, e.Field, e.Reason)
	}
}

func (e *MalformedTelemetryError) Is(target error) bool {
	return target == ErrMalformedTelemetry
}

func malformed(entry int, field, format string, args ...any) *MalformedTelemetryError {
	return &MalformedTelemetryError{Entry: entry, Field: field, Reason: fmt.Sprintf(format, args...)}
}
