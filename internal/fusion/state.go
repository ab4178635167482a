package fusion

import (
	"context"
	"fmt"
)

// FrameState is a frame's position in the two-phase write.
type FrameState string

const (
	StatePending                   FrameState = "pending"
	StateTaggedBase                FrameState = "tagged_base"
	StateTimestampCorrected        FrameState = "timestamp_corrected"
	StateTaggedBaseFailed          FrameState = "tagged_base_failed"
	StateTimestampCorrectionFailed FrameState = "timestamp_correction_failed"
)

// Phase identifies one of the two writes.
type Phase int

const (
	PhaseBase Phase = iota + 1
	PhaseTimestamp
)

func (p Phase) String() string {
	switch p {
	case PhaseBase:
		return "base tags"
	case PhaseTimestamp:
		return "timestamp correction"
	default:
		return fmt.Sprintf("phase %d", int(p))
	}
}

var transitions = map[FrameState][]FrameState{
	StatePending:    {StateTaggedBase, StateTaggedBaseFailed},
	StateTaggedBase: {StateTimestampCorrected, StateTimestampCorrectionFailed},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to FrameState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s FrameState) Terminal() bool {
	return len(transitions[s]) == 0
}

// Failed reports whether s is a failure state.
func (s FrameState) Failed() bool {
	return s == StateTaggedBaseFailed || s == StateTimestampCorrectionFailed
}

// ParseFrameState maps a stored value back onto a FrameState.
func ParseFrameState(value string) (FrameState, error) {
	switch s := FrameState(value); s {
	case StatePending, StateTaggedBase, StateTimestampCorrected, StateTaggedBaseFailed, StateTimestampCorrectionFailed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown frame state %q", value)
	}
}

// StateRecorder receives every state a frame enters.
type StateRecorder interface {
	RecordState(ctx context.Context, frame Frame, state FrameState, cause error) error
}
