// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual video/subtitle stream properties
//   - Format: container-level metadata (duration, tags)
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Helper methods on Result report the subtitle stream count that carries
// flight telemetry and the container creation time used as a fallback
// capture date.
package ffprobe
