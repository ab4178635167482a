// Package ffmpeg drives the ffmpeg binary to pull stills and the embedded
// telemetry caption track out of a flight video.
//
// Frames are sampled at one per second and named <prefix>_%06d.<ext> with a
// 1-based counter, so frame N on disk pairs with telemetry entry N-1.
package ffmpeg
