// Package fusion joins frame files with telemetry trackpoints and drives the
// two-phase tag write for each frame.
//
// Frames pair with trackpoints by explicit index: the file with counter N
// takes trackpoint N-1. A frame without a trackpoint aborts the run with an
// IndexMismatchError; trailing trackpoints without frames are ignored.
//
// Each frame moves through an explicit state machine:
//
//	Pending -> TaggedBase -> TimestampCorrected
//	Pending -> TaggedBaseFailed
//	TaggedBase -> TimestampCorrectionFailed
//
// Phase 1 writes the common and per-frame tags and always rewrites CreateDate
// to the video's value. Phase 2 then shifts CreateDate by the trackpoint's
// whole-seconds timecode. Re-running both phases therefore lands on the same
// CreateDate; running phase 2 alone twice would not, which is why resumed runs
// skip frames already in TimestampCorrected.
package fusion
