package fusion

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexMismatch marks frames with no trackpoint at their index.
	ErrIndexMismatch = errors.New("frame index has no trackpoint")
	// ErrTagWrite marks failed tag writes.
	ErrTagWrite = errors.New("tag write failed")
)

// IndexMismatchError reports a frame whose index is outside the telemetry track.
type IndexMismatchError struct {
	FrameIndex  int
	TrackLength int
}

func (e *IndexMismatchError) Error() string {
	return fmt.Sprintf("%v: frame index %d, track has %d trackpoints", ErrIndexMismatch, e.FrameIndex, e.TrackLength)
}

func (e *IndexMismatchError) Is(target error) bool {
	return target == ErrIndexMismatch
}

// TagWriteError reports a failed write for one frame and phase.
type TagWriteError struct {
	Frame string
	Index int
	Phase Phase
	Err   error
}

func (e *TagWriteError) Error() string {
	return fmt.Sprintf("%v: %s (frame %d, %s): %v", ErrTagWrite, e.Frame, e.Index, e.Phase, e.Err)
}

func (e *TagWriteError) Unwrap() error { return e.Err }

func (e *TagWriteError) Is(target error) bool {
	return target == ErrTagWrite
}
